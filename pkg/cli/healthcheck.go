package cli

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/stchstepan/passbolt/pkg/observability"
)

func newHealthcheckCommand() *Command {
	return &Command{
		Name:        "healthcheck",
		Description: "Run the health diagnostics and print the report",
		Flags:       flag.NewFlagSet("healthcheck", flag.ExitOnError),
		Run:         runHealthcheck,
	}
}

func runHealthcheck(args []string) error {
	flags := flag.NewFlagSet("healthcheck", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, db, cleanup, err := openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	var cache *redis.Client
	if cfg.Cache.Enabled {
		opts, err := redis.ParseURL(cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		if cfg.Cache.Password != "" {
			opts.Password = cfg.Cache.Password
		}
		opts.DB = cfg.Cache.DB
		cache = redis.NewClient(opts)
		defer cache.Close()
	}

	checker := observability.NewHealthChecker(db, cache)
	report := checker.Diagnostics(context.Background())

	keys := make([]string, 0, len(report))
	for key := range report {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%-40s %s\n", key, report[key])
	}

	if report["application"] != observability.StatusHealthy {
		return fmt.Errorf("application is %s", report["application"])
	}
	return nil
}
