package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkkmi/andikar-gate/adapters/hasher"
	"github.com/pkkmi/andikar-gate/adapters/idgen"
	"github.com/pkkmi/andikar-gate/adapters/sqlite"
	"github.com/pkkmi/andikar-gate/config"
	"github.com/pkkmi/andikar-gate/domain/tier"
	"github.com/pkkmi/andikar-gate/ports"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
	Long: `Manage gateway users. Requires the sqlite storage driver.

Examples:
  andikar-gate users list
  andikar-gate users create --email=dev@example.com --name="Dev" --plan=Basic
  andikar-gate users set-plan dev@example.com Premium`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  runUsersCreate,
}

var usersSetPlanCmd = &cobra.Command{
	Use:   "set-plan <email> <plan>",
	Short: "Change a user's plan",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersSetPlan,
}

var usersSeedDemoCmd = &cobra.Command{
	Use:   "seed-demo",
	Short: "Create the demo account if it does not exist",
	RunE:  runUsersSeedDemo,
}

var (
	userEmail    string
	userName     string
	userPlan     string
	userPassword string
)

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersSetPlanCmd)
	usersCmd.AddCommand(usersSeedDemoCmd)

	usersCreateCmd.Flags().StringVar(&userEmail, "email", "", "user email (required)")
	usersCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	usersCreateCmd.Flags().StringVar(&userPlan, "plan", "Free", "plan name")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "password (prompted if empty)")
	usersCreateCmd.MarkFlagRequired("email")
}

func loadCatalog() (*tier.Catalog, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg.Catalog(), nil
}

func openDatabase() (*sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("user management requires database.driver=sqlite (got %q)", cfg.Database.Driver)
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := sqlite.NewUserStore(db).List(context.Background(), 1000, 0)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tPLAN\tPAYMENT\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Email, u.Name, u.PlanName, u.PaymentStatus,
			u.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if userPassword == "" {
		fmt.Print("Password: ")
		fmt.Scanln(&userPassword)
	}

	hash, err := hasher.New(0).Hash(userPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := ports.User{
		ID:            idgen.UUID{}.New(),
		Email:         userEmail,
		Name:          userName,
		PasswordHash:  hash,
		PlanName:      userPlan,
		PaymentStatus: "Paid",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := sqlite.NewUserStore(db).Create(context.Background(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Created user %s (%s) on plan %s\n", user.Email, user.ID, user.PlanName)
	return nil
}

func runUsersSeedDemo(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	store := sqlite.NewUserStore(db)

	const demoEmail = "demo@example.com"
	if _, err := store.GetByEmail(ctx, demoEmail); err == nil {
		fmt.Println("Demo user already exists.")
		return nil
	}

	hash, err := hasher.New(0).Hash("demo")
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := ports.User{
		ID:            idgen.UUID{}.New(),
		Email:         demoEmail,
		Name:          "Demo User",
		PasswordHash:  hash,
		PlanName:      "Free",
		PaymentStatus: "N/A",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create demo user: %w", err)
	}

	fmt.Printf("Created demo user %s (password: demo) on plan %s\n", user.Email, user.PlanName)
	return nil
}

func runUsersSetPlan(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	store := sqlite.NewUserStore(db)

	user, err := store.GetByEmail(ctx, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	user.PlanName = args[1]
	user.UpdatedAt = time.Now().UTC()
	if err := store.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	fmt.Printf("Moved %s to plan %s\n", user.Email, user.PlanName)
	return nil
}
