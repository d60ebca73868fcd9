package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/supportdesk/ticketsync/internal/app"
	"github.com/supportdesk/ticketsync/internal/config"
	"github.com/supportdesk/ticketsync/internal/observability"
	"github.com/supportdesk/ticketsync/internal/tools/common"
	"github.com/supportdesk/ticketsync/internal/tools/hubsim"
	"github.com/supportdesk/ticketsync/internal/ui"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:   "ticketsync",
		Short: "Event-driven cache sync client for the support desk",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional env file with configuration overrides")
	root.AddCommand(newRunCommand(), newInboxCommand(), newHubsimCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync client and its read-model API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			lp, logger, err := observability.InitLogging(ctx, cfg)
			if err != nil {
				return err
			}
			runtime, err := observability.InitRuntime(ctx, cfg, logger, lp)
			if err != nil {
				return err
			}

			a, err := app.New(cfg, logger, runtime)
			if err != nil {
				return err
			}
			if token == "" {
				token = os.Getenv("TICKETSYNC_TOKEN")
			}
			if token != "" {
				loginCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := a.Sessions.Login(loginCtx, token); err != nil {
					logger.Warn("login with provided token failed", "error", err)
				}
				cancel()
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "session token to log in with at startup")
	return cmd
}

func newInboxCommand() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Open the terminal inbox dashboard against a running client",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ui.Run(baseURL)
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://127.0.0.1:8980", "read-model API base URL")
	return cmd
}

func newHubsimCommand() *cobra.Command {
	var (
		addr     string
		path     string
		interval time.Duration
		seed     int64
	)
	cmd := &cobra.Command{
		Use:   "hubsim",
		Short: "Run a local hub simulator emitting synthetic ticket events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			_, logger, err := observability.InitLogging(ctx, cfg)
			if err != nil {
				return err
			}
			sim := hubsim.New(hubsim.Config{
				ListenAddr: addr,
				Path:       path,
				Interval:   interval,
				Seed:       seed,
				Logger:     logger,
			})
			return sim.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7194", "listen address")
	cmd.Flags().StringVar(&path, "path", "/ticketHub", "websocket endpoint path")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "delay between synthetic events")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 picks one")
	return cmd
}
