package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkkmi/andikar-gate/adapters/sqlite"
	"github.com/pkkmi/andikar-gate/domain/quota"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View usage for a user",
	Long: `View word usage for a user. Requires the sqlite storage driver.

Examples:
  andikar-gate usage --user=user_123
  andikar-gate usage --email=dev@example.com`,
	RunE: runUsage,
}

var (
	usageUserID string
	usageEmail  string
)

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVar(&usageUserID, "user", "", "user ID")
	usageCmd.Flags().StringVar(&usageEmail, "email", "", "user email")
}

func runUsage(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	userStore := sqlite.NewUserStore(db)

	userID := usageUserID
	planName := ""
	if userID == "" {
		if usageEmail == "" {
			return fmt.Errorf("either --user or --email is required")
		}
		user, err := userStore.GetByEmail(ctx, usageEmail)
		if err != nil {
			return fmt.Errorf("user not found: %s", usageEmail)
		}
		userID = user.ID
		planName = user.PlanName
	} else if user, err := userStore.Get(ctx, userID); err == nil {
		planName = user.PlanName
	}

	now := time.Now().UTC()
	rec, err := sqlite.NewUsageStore(db).Get(ctx, userID, now)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}

	fmt.Printf("Usage for %s\n", userID)
	if planName != "" {
		fmt.Printf("  Plan:           %s\n", planName)
	}
	fmt.Printf("  Requests:       %d\n", rec.RequestsCount)
	fmt.Printf("  Total words:    %d\n", rec.TotalWords)
	fmt.Printf("  Words today:    %d\n", rec.DailyWords)
	fmt.Printf("  Words (month):  %d\n", rec.MonthlyWords)
	if !rec.LastRequestAt.IsZero() {
		fmt.Printf("  Last request:   %s\n", rec.LastRequestAt.Format(time.RFC3339))
	}

	cfg, err := loadCatalog()
	if err == nil && planName != "" {
		t, _ := cfg.Get(planName)
		d := quota.Check(rec, t, 0, now)
		fmt.Printf("  Remaining:      %d words\n", d.RemainingWords)
		if !d.ResetsAt.IsZero() {
			fmt.Printf("  Resets at:      %s\n", d.ResetsAt.Format(time.RFC3339))
		}
	}

	return nil
}
