// Package detect provides heuristic AI-content scoring.
// The signals are deliberately simple: stock-phrase repetition, sentence
// length uniformity, vocabulary richness, and surface formality. They
// approximate the remote detector when it is unreachable.
// All functions are pure and deterministic.
package detect

import (
	"strings"
	"unicode"
)

// Result holds the detection scores (transient value type).
type Result struct {
	AIScore    int // 0-100, higher = more likely machine-written
	HumanScore int // 100 - AIScore
	Analysis   Analysis
}

// Analysis breaks the score into its component signals (each 0-100).
type Analysis struct {
	FormalLanguage     int
	RepetitivePatterns int
	SentenceUniformity int
}

// Stock phrases that machine-written text leans on.
var stockPhrases = []string{
	"In conclusion",
	"It is important to note",
	"In this essay",
	"This data suggests",
	"Furthermore",
	"Moreover",
}

// Contractions are a marker of informal, human prose.
var contractions = []string{"n't", "'re", "'ll", "'ve", "'m", "it's", "that's"}

// Score analyzes text and estimates how likely it is to be AI-generated.
// This is a PURE function.
func Score(text string) Result {
	formality := formalityScore(text)
	repetition := repetitionScore(text)
	uniformity := uniformityScore(text)

	// Low vocabulary richness nudges the score upward.
	adjustment := int((1 - typeTokenRatio(text)) * 20)

	ai := (formality+repetition+uniformity)/3 + adjustment
	ai = clamp(ai)

	return Result{
		AIScore:    ai,
		HumanScore: 100 - ai,
		Analysis: Analysis{
			FormalLanguage:     formality,
			RepetitivePatterns: repetition,
			SentenceUniformity: uniformity,
		},
	}
}

func formalityScore(text string) int {
	lower := strings.ToLower(text)
	score := 70
	for _, c := range contractions {
		score -= strings.Count(lower, c) * 5
	}
	// Long average word length reads as formal.
	words := strings.Fields(text)
	if len(words) > 0 {
		var letters int
		for _, w := range words {
			letters += len(w)
		}
		if letters/len(words) >= 6 {
			score += 15
		}
	}
	return clamp(score)
}

func repetitionScore(text string) int {
	hits := 0
	for _, p := range stockPhrases {
		hits += strings.Count(text, p)
	}
	return clamp(30 + hits*10)
}

func uniformityScore(text string) int {
	sentences := splitSentences(text)
	if len(sentences) < 2 {
		return 50
	}
	var total int
	for _, s := range sentences {
		total += len(s)
	}
	avg := float64(total) / float64(len(sentences))

	var deviation float64
	for _, s := range sentences {
		d := float64(len(s)) - avg
		if d < 0 {
			d = -d
		}
		deviation += d
	}
	deviation /= float64(len(sentences))

	// Machine text tends toward very even sentence lengths.
	return clamp(100 - int(deviation*2))
}

func typeTokenRatio(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 1
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[strings.TrimFunc(w, unicode.IsPunct)] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

func splitSentences(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
