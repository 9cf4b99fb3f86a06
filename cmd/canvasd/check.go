package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/canvas/internal/config"
)

const checkTimeout = 5 * time.Second

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and backend connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

type checkResult struct {
	Name   string
	Passed bool
	Detail string
	Hint   string
}

func runCheck(ctx context.Context, out io.Writer) error {
	var results []checkResult

	cfg, err := loadConfig()
	if err != nil {
		results = append(results, checkResult{
			Name: "Configuration", Passed: false,
			Hint: err.Error(),
		})
		return report(out, results)
	}

	detail := "environment only"
	if p := configPath(); p != "" {
		detail = p
	}
	results = append(results, checkResult{Name: "Configuration", Passed: true, Detail: detail})
	results = append(results, backendCheck(ctx, cfg))

	return report(out, results)
}

func backendCheck(ctx context.Context, cfg *config.Config) checkResult {
	client, _ := newBackend(cfg, newLogger("error", cfg.LogFormat))

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	hr, err := client.Health(ctx)
	if err != nil {
		return checkResult{
			Name: "Persistor reachable", Passed: false,
			Detail: cfg.PersistorURL,
			Hint:   fmt.Sprintf("Is the Persistor server running? Error: %v", err),
		}
	}

	d := cfg.PersistorURL
	if hr.Version != "" {
		d = fmt.Sprintf("%s (v%s)", d, hr.Version)
	}
	return checkResult{Name: "Persistor reachable", Passed: true, Detail: d}
}

func report(out io.Writer, results []checkResult) error {
	allPassed := true
	for _, r := range results {
		mark := "ok  "
		if !r.Passed {
			mark = "FAIL"
			allPassed = false
		}
		if r.Detail != "" {
			fmt.Fprintf(out, "%s %s: %s\n", mark, r.Name, r.Detail)
		} else {
			fmt.Fprintf(out, "%s %s\n", mark, r.Name)
		}
		if !r.Passed && r.Hint != "" {
			fmt.Fprintf(out, "     Hint: %s\n", r.Hint)
		}
	}

	if !allPassed {
		return fmt.Errorf("check found issues")
	}
	return nil
}
