// Package main is the entry point for the Andikar humanizer gateway.
package main

func main() {
	Execute()
}
