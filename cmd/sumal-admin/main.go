// sumal-admin is the operator CLI: account creation, rate refreshes,
// and quick ledger summaries without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sumal/internal/backend"
	"sumal/internal/cli"
	"sumal/internal/config"
	"sumal/internal/core"
	"sumal/internal/rates"
	"sumal/internal/report"
)

var (
	username string
	password string
	userID   string
	currency string
)

var rootCmd = &cobra.Command{
	Use:           "sumal-admin",
	Short:         "Administrative tasks for the sumal ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an account in the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer closeBackend(result)

		if err := result.Accounts.Create(cmd.Context(), username, password); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		fmt.Printf("created account %q\n", username)
		return nil
	},
}

var refreshRatesCmd = &cobra.Command{
	Use:   "refresh-rates",
	Short: "Fetch fresh exchange rates and print the table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.RateProviderURL == "" {
			return fmt.Errorf("RATE_PROVIDER_URL is not configured")
		}

		table := rates.DefaultTable()
		provider := rates.NewProvider(cfg.RateProviderURL, cfg.RateHTTPTimeout)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := rates.Refresh(ctx, table, provider); err != nil {
			return fmt.Errorf("refresh rates: %w", err)
		}

		fmt.Printf("rates per 1 unit, in %s:\n", rates.Canonical)
		for _, code := range table.Codes() {
			rate, err := table.Rate(code)
			if err != nil {
				continue
			}
			fmt.Printf("  %s  %s\n", code, rate.String())
		}
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print totals and monthly breakdown for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer closeBackend(result)

		records, err := result.Ledger.Records(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("read records: %w", err)
		}

		table := rates.DefaultTable()
		totals, err := report.TotalsByType(records, currency, table)
		if err != nil {
			return fmt.Errorf("compute totals: %w", err)
		}
		saved, err := report.SavedBalance(records, currency, table)
		if err != nil {
			return fmt.Errorf("compute saved balance: %w", err)
		}

		fmt.Printf("user %q, %d records, display currency %s\n", userID, len(records), currency)
		for _, typ := range core.Types {
			fmt.Printf("  %-9s %s\n", typ, core.FormatAmount(totals[typ], currency))
		}
		fmt.Printf("  %-9s %s\n", "Saved", core.FormatAmount(saved, currency))

		months, err := report.MonthlyTotals(records, currency, table, false)
		if err != nil {
			return fmt.Errorf("compute monthly totals: %w", err)
		}
		if len(months) > 0 {
			fmt.Println("monthly:")
			for _, m := range months {
				fmt.Printf("  %s  %s\n", m.Label, core.FormatAmount(m.Amount, currency))
			}
		}
		return nil
	},
}

// loadConfig reads env config without the full server validation; the
// admin CLI only needs the backend and rate settings.
func loadConfig() *config.Config {
	cli.LoadEnvFile()
	return config.Load()
}

func openBackend(ctx context.Context) (*backend.Result, error) {
	cfg := loadConfig()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if err := backendCfg.Validate(); err != nil {
		return nil, err
	}

	factory := backend.NewFactory(nil)
	return factory.CreateBackend(ctx, backendCfg)
}

func closeBackend(result *backend.Result) {
	if result.Cleanup != nil {
		_ = result.Cleanup()
	}
}

func init() {
	createUserCmd.Flags().StringVar(&username, "username", "", "username for the new account")
	createUserCmd.Flags().StringVar(&password, "password", "", "password for the new account")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("password")

	summaryCmd.Flags().StringVar(&userID, "user", "local", "user whose ledger to summarize")
	summaryCmd.Flags().StringVar(&currency, "currency", rates.Canonical, "display currency")

	rootCmd.AddCommand(createUserCmd, refreshRatesCmd, summaryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
