// Command migrate applies, reverts and reports schema migrations of the
// configured storage backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/protomind/user-service/internal/infrastructure/config"
	"github.com/protomind/user-service/internal/infrastructure/db"
	"github.com/protomind/user-service/pkg/logger"
)

var (
	app = kingpin.New("migrate", "Protomind user service schema migrations.")

	driverFlag = app.Flag("driver", "Storage backend (mongo or postgres). Overrides DB_DRIVER.").
			Envar("DB_DRIVER").Enum(config.DriverMongo, config.DriverPostgres)
	timeoutFlag = app.Flag("timeout", "Overall deadline for the command.").
			Default("5m").Duration()

	upCommand = app.Command("up", "Apply every pending migration.")

	downCommand = app.Command("down", "Revert the most recent migrations.")
	downSteps   = downCommand.Flag("steps", "Number of migrations to revert.").
			Default("1").Int()

	statusCommand = app.Command("status", "List migrations and whether they are applied.")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(context.Background())
	kingpin.FatalIfError(err, "Load configuration")
	if *driverFlag != "" {
		cfg.DBDriver = *driverFlag
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  true,
		Service: "migrate",
		Output:  os.Stderr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	backend, err := db.Open(ctx, cfg, log)
	kingpin.FatalIfError(err, "Connect %s", cfg.DBDriver)
	defer func() { _ = backend.Close(context.Background()) }()

	switch command {
	case upCommand.FullCommand():
		applied, err := backend.Migrator.Up(ctx)
		kingpin.FatalIfError(err, "Migrate up")
		report("applied", applied)

	case downCommand.FullCommand():
		if *downSteps < 1 {
			kingpin.Fatalf("--steps must be at least 1")
		}
		reverted, err := backend.Migrator.Down(ctx, *downSteps)
		kingpin.FatalIfError(err, "Migrate down")
		report("reverted", reverted)

	case statusCommand.FullCommand():
		statuses, err := backend.Migrator.Status(ctx)
		kingpin.FatalIfError(err, "Migration status")
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%-60s %s\n", s.Version, state)
		}
	}
}

func report(verb string, versions []string) {
	if len(versions) == 0 {
		fmt.Println("nothing to do")
		return
	}
	for _, v := range versions {
		fmt.Printf("%s %s\n", verb, v)
	}
}
