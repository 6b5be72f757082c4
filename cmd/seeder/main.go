package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/locvowork/employee_roster/internal/config"
	"github.com/locvowork/employee_roster/internal/logger"
	"github.com/locvowork/employee_roster/internal/repository"
	"github.com/locvowork/employee_roster/internal/seeder"
)

func main() {
	// Define flags
	action := flag.String("action", "seed", "Action to perform: seed, clear")
	preset := flag.String("preset", "medium", "Data preset: small, medium, large")
	count := flag.Int("count", 0, "Number of employees to create (overrides preset)")
	workers := flag.Int("workers", 4, "Number of concurrent requests")
	yes := flag.Bool("yes", false, "Skip the confirmation prompt of clear")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("🚀 Employee Seeder")
	fmt.Println(strings.Repeat("=", 50))

	// Load environment configuration
	if err := config.LoadEnvConfig(); err != nil {
		log.Fatal(err)
	}
	cfg := config.DefaultEnvConfig
	logger.InitLogging(cfg.LOG_FILE_PATH, cfg.LOG_LEVEL)

	repo, err := repository.NewEmployeeRepository(cfg.EMPLOYEE_API_URL, repository.WithTimeout(cfg.EMPLOYEE_API_TIMEOUT))
	if err != nil {
		logger.ErrorErr(ctx, err, "Failed to initialize employee repository")
		log.Fatal(err)
	}
	fmt.Printf("📡 Employee service: %s\n", cfg.EMPLOYEE_API_URL)

	s := seeder.NewSeeder(repo, *workers)

	// Execute action
	switch *action {
	case "seed":
		performSeed(ctx, s, *preset, *count)

	case "clear":
		performClear(ctx, s, *yes)

	default:
		fmt.Printf("❌ Unknown action: %s\n", *action)
		flag.PrintDefaults()
		os.Exit(2)
	}

	fmt.Println("\n✅ Done!")
}

func performSeed(ctx context.Context, s *seeder.Seeder, preset string, count int) {
	n := count
	if n > 0 {
		fmt.Printf("📊 Using custom count: %d employees\n", n)
	} else {
		n = seeder.PresetCount(seeder.Preset(preset))
		fmt.Printf("📊 Using preset: %s (%d employees)\n", preset, n)
	}

	stats, err := s.Seed(ctx, n)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	fmt.Printf("🎉 Created %d employees in %v (%d failed)\n", stats.Done, stats.Elapsed, stats.Failed)
}

func performClear(ctx context.Context, s *seeder.Seeder, yes bool) {
	if !yes {
		fmt.Println("⚠️  This will delete every employee!")
		fmt.Print("Continue? (yes/no): ")

		var response string
		fmt.Scanln(&response)
		if response != "yes" {
			fmt.Println("Cancelled.")
			return
		}
	}

	stats, err := s.Clear(ctx)
	if err != nil {
		log.Fatalf("❌ Clear failed after %d deletions: %v", stats.Done, err)
	}
	fmt.Printf("🗑️  Deleted %d employees in %v\n", stats.Done, stats.Elapsed)
}
