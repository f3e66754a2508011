// Command pubsite serves a pubsite blog with the default views and manages
// its database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/pubsite"
	"github.com/eringen/pubsite/views"
)

// version is set at build time via ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pubsite",
		Short:         "pubsite - a content-listing blog built with Go, Echo, and templ",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", ".env", "dotenv file read before the environment")

	root.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		versionCmd(),
	)
	return root
}

func loadConfig(cmd *cobra.Command) (pubsite.SiteConfig, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return pubsite.SiteConfig{}, err
	}
	return pubsite.LoadConfig(envFile)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []pubsite.Option
			if _, err := os.Stat("public"); err != nil {
				opts = append(opts, pubsite.WithStaticFS(views.Static))
			}
			app := pubsite.New(cfg, views.New(cfg), opts...)
			defer app.Close()

			errc := make(chan error, 1)
			go func() { errc <- app.Start(ctx) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			app.Logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errc
		},
	}
	cmd.Flags().String("addr", "", "listen address, overrides PUBSITE_ADDR")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := pubsite.NewLogger(cfg, cmd.ErrOrStderr())
			store, err := pubsite.NewStore(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			v, err := pubsite.SchemaVersion(cmd.Context(), store.DB())
			if err != nil {
				return err
			}
			logger.Info("database migrated", "path", cfg.DatabasePath, "version", v)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Import authors, categories, tags, posts and pages from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := pubsite.NewLogger(cfg, cmd.ErrOrStderr())

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, err := pubsite.NewStore(cmd.Context(), cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := pubsite.LoadFixtures(cmd.Context(), store, f)
			if err != nil {
				return fmt.Errorf("seed %s: %w", args[0], err)
			}
			logger.Info("fixtures loaded",
				"authors", stats.Authors,
				"categories", stats.Categories,
				"tags", stats.Tags,
				"posts", stats.Posts,
				"pages", stats.Pages,
			)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pubsite version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pubsite %s\n", version)
		},
	}
}
