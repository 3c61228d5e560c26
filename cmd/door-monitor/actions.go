package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/door-monitor/internal/action"
	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
)

func newPrintStateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "print-state",
		Short: "Sample every input once and print its level.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pins, err := config.LoadPins(global.pinsPath)
			if err != nil {
				return err
			}
			p, err := gpio.Open(global.backend, global.chip, pins)
			if err != nil {
				return fmt.Errorf("init gpio: %w", err)
			}
			defer p.Close()

			return printState(cmd, p)
		},
	}
}

func printState(cmd *cobra.Command, r gpio.Reader) error {
	levels, err := gpio.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}

	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, levelString(levels[name]))
	}
	return nil
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func newActionsCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Diagnostics for remote action definitions.",
	}
	cmd.AddCommand(
		newActionsCheckCmd(global),
		newActionsSoakCmd(global),
		newActionsServeCmd(),
	)
	return cmd
}

func newActionsCheckCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <actions-file>",
		Short: "Run every defined action once, then a few invalid names.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDispatcher(args[0], global.settingsPath)
			if err != nil {
				return err
			}

			results := action.Check(cmd.Context(), d, cmd.OutOrStdout())

			failed := 0
			for _, r := range results {
				if !r.OK && d.Has(r.Name) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d defined action(s) failed", failed)
			}
			return nil
		},
	}
}

func newActionsSoakCmd(global *globalOptions) *cobra.Command {
	var (
		duration time.Duration
		pause    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "soak [actions-file]",
		Short: "Toggle the garage light repeatedly and count failures.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.actionsPath
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no actions file given")
			}

			settings, err := config.LoadSettings(global.settingsPath)
			if err != nil {
				return err
			}
			d, err := loadDispatcher(path, global.settingsPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			res := action.Soak(ctx, d, action.SoakOptions{
				OnAction:  settings.Actions.GarageLightOn,
				OffAction: settings.Actions.GarageLightOff,
				Duration:  duration,
				Pause:     pause,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "good: %d, failed: %d\n", res.Good, res.Fail)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "how long to keep toggling")
	cmd.Flags().DurationVar(&pause, "pause", 5*time.Second, "pause between toggles")
	return cmd
}

func newActionsServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve <actions-file>",
		Short: "Serve a stand-in for the remote devices of an actions file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := config.LoadActions(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			srv := &http.Server{
				Addr:              listen,
				Handler:           action.TestHandler(ctx, defs),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				srv.Shutdown(context.Background())
			}()

			logger.InfoKV(ctx, "Action test server listening", "addr", listen, "actions", len(defs))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8081", "listen address")
	return cmd
}

func loadDispatcher(actionsPath, settingsPath string) (*action.Dispatcher, error) {
	defs, err := config.LoadActions(actionsPath)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	return newDispatcher(defs, settings)
}
