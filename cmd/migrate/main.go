package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/logger"
	"github.com/iliria/erp-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up              apply all pending migrations
  down            roll back the latest migration
  to VERSION      move the schema to VERSION (YYYYMMDDHHMMSS)
  status          list migrations and when they were applied
  create NAME     write a new empty migration into -dir
  validate        check bundled migration files
`

func main() {
	dir := flag.String("dir", migrate.SourceDir, "directory for create")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithField(context.Background(), "cmd", command)

	switch command {
	case "create":
		if len(args) != 1 {
			fail(ctx, logg, "create needs a NAME", nil)
		}
		path, err := migrate.Create(*dir, args[0], time.Now())
		if err != nil {
			fail(ctx, logg, "create migration", err)
		}
		fmt.Println(path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Bundled()); err != nil {
			fail(ctx, logg, "invalid migrations", err)
		}
		fmt.Println("ok")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail(ctx, logg, "load config", err)
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(ctx, logg, "connect database", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(ctx, logg, "sql handle", err)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.Bundled())
	if err != nil {
		fail(ctx, logg, "build runner", err)
	}

	var applied []int64
	switch command {
	case "up":
		applied, err = runner.Up(ctx)
	case "down":
		applied, err = runner.Down(ctx)
	case "to":
		if len(args) != 1 {
			fail(ctx, logg, "to needs a VERSION", nil)
		}
		target, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			fail(ctx, logg, "parse version", perr)
		}
		applied, err = runner.To(ctx, target)
	case "status":
		statuses, serr := runner.Status(ctx)
		if serr != nil {
			fail(ctx, logg, "status", serr)
		}
		for _, s := range statuses {
			at := "pending"
			if !s.AppliedAt.IsZero() {
				at = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-14d %-8s %s\n", s.Source.Version, s.State, at)
		}
		return
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fail(ctx, logg, "migrate "+command, err)
	}
	logg.Info(logg.WithField(ctx, "versions", applied), "migrate done")
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
