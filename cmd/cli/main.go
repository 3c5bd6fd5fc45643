package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/tradeledger/internal/adapter/http/middleware"
	"github.com/iho/tradeledger/internal/domain"
	"github.com/iho/tradeledger/internal/infrastructure/auth"
	"github.com/iho/tradeledger/internal/infrastructure/postgres"
	"github.com/iho/tradeledger/internal/usecase"
)

type options struct {
	baseURL string
	timeout time.Duration
	token   string
	actor   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "tradeledger-cli",
		Short:         "TradeLedger CLI tool",
		Long:          `A command line interface for checking and maintaining the TradeLedger debt ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("TRADELEDGER_URL", "http://localhost:8080"), "Base URL of the TradeLedger API")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TRADELEDGER_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", usecase.SystemActor, "Actor ID sent when no token is set")

	// Ledger commands
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}
	ledgerCmd.AddCommand(consistencyCmd(opts), reportCmd(opts), reconcileCmd(opts))

	rootCmd.AddCommand(ledgerCmd, tokenCmd(), migrateCmd())
	return rootCmd
}

func consistencyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Check that entity balances match the ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Status     string `json:"status"`
				Consistent bool   `json:"consistent"`
				Message    string `json:"message"`
			}
			status, err := opts.get("/api/v1/ledger/consistency", &result)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if status != http.StatusOK || !result.Consistent {
				fmt.Fprintf(out, "Consistency check FAILED (Status: %d)\n", status)
				if result.Message != "" {
					fmt.Fprintf(out, "Reason: %s\n", result.Message)
				}
				return fmt.Errorf("ledger is inconsistent")
			}

			fmt.Fprintln(out, "Consistency check PASSED")
			fmt.Fprintf(out, "Status: %s\n", result.Status)
			return nil
		},
	}
}

func reportCmd(opts *options) *cobra.Command {
	var (
		cached bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reconcile every entity and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/ledger/report"
			if cached {
				path += "?cached=true"
			}

			var report usecase.ReconciliationReport
			status, err := opts.get(path, &report)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("report request failed with status %d", status)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, report)
			}

			fmt.Fprintf(out, "Checked at:   %s\n", report.CheckedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Reconciled:   %d/%d\n", report.ReconciledEntities, report.TotalEntities)
			fmt.Fprintf(out, "Consistent:   %v\n", report.LedgerConsistent)
			for _, d := range report.Discrepancies {
				fmt.Fprintf(out, "  %-26s UZS %s  USD %s\n",
					truncate(d.EntityID, 26),
					d.Difference.Get(domain.CurrencyUZS).StringFixed(domain.MoneyScale),
					d.Difference.Get(domain.CurrencyUSD).StringFixed(domain.MoneyScale))
			}
			for _, f := range report.Failures {
				fmt.Fprintf(out, "  failed: %s\n", f)
			}
			if len(report.Discrepancies) > 0 || !report.LedgerConsistent {
				return fmt.Errorf("%d discrepancies found", len(report.Discrepancies))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Show the last stored report instead of running a new one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw report")
	return cmd
}

func reconcileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <entity-id>",
		Short: "Replay one entity's entries against its balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result usecase.ReconciliationResult
			status, err := opts.get("/api/v1/entities/"+url.PathEscape(args[0])+"/reconcile", &result)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("reconcile request failed with status %d", status)
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.IsReconciled {
				return fmt.Errorf("entity %s is not reconciled", result.EntityID)
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		secret string
		role   string
		name   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <actor-id>",
		Short: "Issue an API token for an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			actor := &domain.Actor{ID: args[0], Role: domain.Role(role)}
			token, err := auth.NewJWTManager(secret, ttl).Generate(actor, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "Signing secret")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleOperator), "Role: admin, operator or viewer")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

var (
	migrateUp      = postgres.RunMigrations
	migrateDown    = postgres.RunMigrationsDown
	migrateVersion = postgres.MigrationVersion
)

func migrateCmd() *cobra.Command {
	var dbURL, path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&dbURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL")
	cmd.PersistentFlags().StringVar(&path, "path", envOr("MIGRATIONS_PATH", "migrations"), "Migrations directory")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrateUp(dbURL, path)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrateDown(dbURL, path)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := migrateVersion(dbURL, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

// get calls the API and decodes the JSON body into dest. The status is
// returned for every decoded response so callers can report 409s.
func (o *options) get(path string, dest any) (int, error) {
	req, err := http.NewRequest(http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	} else if o.actor != "" {
		req.Header.Set(middleware.ActorIDHeader, o.actor)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response (status %d): %s", resp.StatusCode, truncate(string(bytes.TrimSpace(body)), 200))
	}
	return resp.StatusCode, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
