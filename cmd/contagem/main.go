package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"contagem/internal/catalogio"
	"contagem/internal/config"
	"contagem/internal/http/handlers"
	"contagem/internal/repos"
	"contagem/internal/services"
	"contagem/internal/validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "contagem: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contagem",
		Short: "Inventory counting service",
		Long: `contagem serves the counting pages and API, and moves catalog and count
data in and out of XLSX workbooks. Configuration comes from the environment
(or a .env file): PORT, DB_DRIVER, DB_DSN, LOG_FILE, TEMPLATES_DIR, ...`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newCatalogCmd(),
		newCountsCmd(),
		newUserCmd(),
	)
	return cmd
}

func openStore(cfg config.Config) (*sqlx.DB, error) {
	return repos.Open(cfg.DBDriver, cfg.DBDSN)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			// Optional file logging
			if cfg.LogFile != "" {
				f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
				} else {
					defer f.Close()
					log.SetOutput(io.MultiWriter(os.Stdout, f))
				}
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			users := repos.NewUserRepo(db)
			if _, err := users.EnsureOperator(cfg.OperatorEmail, "Operador", cfg.OperatorPass, "ADMIN"); err != nil {
				return fmt.Errorf("seed operator: %w", err)
			}

			deps := handlers.NewDeps(db, cfg)
			app := handlers.NewApp(cfg, deps)

			errc := make(chan error, 1)
			go func() { errc <- app.Listen(":" + cfg.Port) }()
			log.Printf("[serve] listening on :%s", cfg.Port)

			select {
			case err := <-errc:
				deps.Shutdown()
				return err
			case <-cmd.Context().Done():
			}
			log.Printf("[serve] shutting down")
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.Printf("[warn] shutdown: %v", err)
			}
			deps.Shutdown()
			return nil
		},
	}
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Reference catalog maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import file.xlsx",
		Short: "Upsert catalog rows from the first sheet of a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			catalog := repos.NewCatalogRepo(db)
			res, err := catalogio.ImportCatalog(cmd.Context(), f, catalog)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows\n", res.Imported)
			if len(res.Skipped) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped rows without codprod: %v\n", res.Skipped)
			}
			if total, err := catalog.Count(cmd.Context()); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "catalog now holds %d products\n", total)
			}
			return nil
		},
	})
	return cmd
}

func newCountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Count records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "export out.xlsx",
		Short: "Write every count record to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			recent := services.NewRecentService(repos.NewCountRepo(db), repos.NewCatalogRepo(db), cfg.RecentLimit)
			rows, err := recent.All(cmd.Context())
			if err != nil {
				return err
			}
			out, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := catalogio.ExportCounts(out, rows); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s\n", len(rows), args[0])
			return nil
		},
	})
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Operator accounts",
	}
	var name, role string
	add := &cobra.Command{
		Use:   "add email password",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, ok := validate.Email(args[0])
			if !ok {
				return errors.New("invalid email")
			}
			if !validate.Password(args[1]) {
				return errors.New("password needs 8-20 characters with upper, lower, digit and symbol")
			}
			if role != "OPERATOR" && role != "ADMIN" {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg := config.Load()
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := repos.NewUserRepo(db).EnsureOperator(email, name, args[1], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s)\n", email, id)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "Operador", "Display name")
	add.Flags().StringVar(&role, "role", "OPERATOR", "OPERATOR or ADMIN")
	cmd.AddCommand(add)
	return cmd
}
