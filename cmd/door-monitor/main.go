// Command door-monitor watches a garage door, motion sensors and a reset
// button through GPIO inputs and drives the lights, buzzer, horn and remote
// signals in response.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	pinsPath     string
	triggersPath string
	actionsPath  string
	settingsPath string
	logFile      string
	logLevel     string
	backend      string
	chip         string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "door-monitor",
		Short: "Monitor a garage door over GPIO and drive alarms, lights and remote signals.",
		Long: `door-monitor polls GPIO inputs, turns matching input conditions into named
events according to a trigger file, and runs the door controller on them.

Pins, triggers and remote actions are JSON files; controller timings are YAML.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(opts, cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Sync()
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.pinsPath, "pins", "g", "pins.json", "JSON file defining the GPIO setup")
	f.StringVarP(&opts.triggersPath, "triggers", "e", "triggers.json", "JSON file defining the events to monitor")
	f.StringVarP(&opts.actionsPath, "actions", "a", "", "JSON file defining remote actions (optional)")
	f.StringVarP(&opts.settingsPath, "settings", "s", "", "YAML controller settings (optional, defaults when empty)")
	f.StringVarP(&opts.logFile, "log-file", "l", "", "log file path, appended to alongside stdout (optional)")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&opts.backend, "gpio", gpio.BackendChip, "GPIO backend: chip, periph or sim")
	f.StringVar(&opts.chip, "chip", gpio.DefaultChip, "GPIO character device for the chip backend")

	root.AddCommand(
		newRunCmd(opts),
		newPrintStateCmd(opts),
		newActionsCmd(opts),
	)
	return root
}

// logFile is kept open for the life of the process once set up.
var logFile *os.File //nolint:gochecknoglobals // Closed only at exit.

func setupLogging(opts *globalOptions, stderr io.Writer) error {
	level, ok := logger.ParseLogLevel(opts.logLevel)
	if !ok {
		return fmt.Errorf("unknown log level %q", opts.logLevel)
	}
	logger.SetLevel(level)

	if opts.logFile == "" || logFile != nil {
		return nil
	}

	f, err := logger.OpenFile(opts.logFile)
	if err != nil {
		fmt.Fprintf(stderr, "cannot open log file: %v\n", err)
		return err
	}
	logFile = f
	logger.SetLogger(logger.New(nil, os.Stdout, f))
	return nil
}
