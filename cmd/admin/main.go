// Command admin is an operator CLI for quota and subscription fixes:
// granting extra scans after a support ticket or toggling a subscription
// when a Stripe webhook was missed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/microlens/microlens-backend/internal/config"
	"github.com/microlens/microlens-backend/internal/database"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
	"github.com/microlens/microlens-backend/internal/repository/postgres"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load configuration: %v", err)
	}
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		fatal("failed to connect to database: %v", err)
	}
	defer db.Close()

	users := postgres.NewUserRepository(db.DB)
	ctx := context.Background()

	switch os.Args[1] {
	case "grant-scans":
		fs := flag.NewFlagSet("grant-scans", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		count := fs.Int("count", 0, "scans to add (negative to remove)")
		fs.Parse(os.Args[2:])
		if *email == "" || *count == 0 {
			fatal("grant-scans requires -email and a non-zero -count")
		}

		user := mustFindUser(ctx, users, *email)
		if err := users.AdjustScansRemaining(ctx, user.ID, *count); err != nil {
			fatal("adjust failed: %v", err)
		}
		fmt.Printf("adjusted %s by %+d scans (was %d)\n", *email, *count, user.ScansRemaining)

	case "set-subscribed":
		fs := flag.NewFlagSet("set-subscribed", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		value := fs.Bool("value", true, "subscription state")
		fs.Parse(os.Args[2:])
		if *email == "" {
			fatal("set-subscribed requires -email")
		}

		user := mustFindUser(ctx, users, *email)
		if err := users.SetSubscribed(ctx, user.ID, *value); err != nil {
			fatal("update failed: %v", err)
		}
		fmt.Printf("set %s subscribed=%v\n", *email, *value)

	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		email := fs.String("email", "", "account email")
		fs.Parse(os.Args[2:])
		if *email == "" {
			fatal("show requires -email")
		}

		user := mustFindUser(ctx, users, *email)
		lastScan := "never"
		if user.LastScanDate != nil {
			lastScan = *user.LastScanDate
		}
		fmt.Printf("id:              %s\n", user.ID)
		fmt.Printf("email:           %s\n", user.Email)
		fmt.Printf("scans_remaining: %d\n", user.ScansRemaining)
		fmt.Printf("scans_today:     %d (last scan %s)\n", user.ScansToday, lastScan)
		fmt.Printf("completed_scans: %d\n", user.CompletedScans)
		fmt.Printf("is_subscribed:   %v\n", user.IsSubscribed)

	default:
		usage()
		os.Exit(2)
	}
}

func mustFindUser(ctx context.Context, users repository.UserRepository, email string) *models.User {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		fatal("user %s: %v", email, err)
	}
	return user
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin <grant-scans|set-subscribed|show> [flags]")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
