package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/door-monitor/internal/action"
	"github.com/sweeney/door-monitor/internal/clock"
	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/datalog"
	"github.com/sweeney/door-monitor/internal/door"
	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/monitor"
	"github.com/sweeney/door-monitor/internal/mqtt"
	"github.com/sweeney/door-monitor/internal/status"
	"github.com/sweeney/door-monitor/internal/web"
)

// runOptions are the flags of the run command.
type runOptions struct {
	dataLogURI string
	interval   time.Duration
	broker     string
	httpAddr   string
	heartbeat  time.Duration
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the door monitor until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.dataLogURI, "data-log-uri", "u", "", "base URI for data logging (optional)")
	f.DurationVar(&opts.interval, "interval", monitor.DefaultInterval, "input polling interval")
	f.StringVar(&opts.broker, "broker", "", "MQTT broker address (empty disables MQTT)")
	f.StringVar(&opts.httpAddr, "http", ":8080", "HTTP status address (empty disables)")
	f.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "MQTT status heartbeat interval (0 to disable)")
	return cmd
}

// loaded holds every configuration file, validated.
type loaded struct {
	pins     *config.PinSettings
	triggers []config.Trigger
	actions  config.Actions
	settings *config.Settings
}

func loadConfig(global *globalOptions) (*loaded, error) {
	pins, err := config.LoadPins(global.pinsPath)
	if err != nil {
		return nil, err
	}
	triggers, err := config.LoadTriggers(global.triggersPath, pins)
	if err != nil {
		return nil, err
	}
	actions := config.Actions{}
	if global.actionsPath != "" {
		if actions, err = config.LoadActions(global.actionsPath); err != nil {
			return nil, err
		}
	}
	settings, err := config.LoadSettings(global.settingsPath)
	if err != nil {
		return nil, err
	}
	return &loaded{pins: pins, triggers: triggers, actions: actions, settings: settings}, nil
}

func newDispatcher(actions config.Actions, settings *config.Settings) (*action.Dispatcher, error) {
	return action.NewDispatcher(actions,
		action.WithRetries(settings.Dispatch.Retries),
		action.WithRetryDelay(settings.Dispatch.RetryDelay),
		action.WithTimeout(settings.Dispatch.Timeout),
	)
}

func run(ctx context.Context, global *globalOptions, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithName(ctx, "main")

	cfg, err := loadConfig(global)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pins, err := gpio.Open(global.backend, global.chip, cfg.pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	dispatcher, err := newDispatcher(cfg.actions, cfg.settings)
	if err != nil {
		return fmt.Errorf("init actions: %w", err)
	}

	dataLog := datalog.New(opts.dataLogURI, datalog.WithTimeout(cfg.settings.DataLogTimeout))
	defer dataLog.Close()

	// Tracker first so the STARTUP snapshot is available.
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:        opts.interval.Milliseconds(),
		GPIO:          global.backend,
		Broker:        opts.broker,
		HTTPAddr:      opts.httpAddr,
		DataLog:       dataLog.Enabled(),
		RemoteSignals: cfg.settings.RemoteSignals,
		Triggers:      len(cfg.triggers),
		Actions:       len(cfg.actions),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if opts.broker != "" {
		p, err := mqtt.NewRealPublisher(ctx, opts.broker, mqtt.WithStatusHandler(tracker.SetMQTTConnected))
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	d := newDaemon(daemonDeps{
		pins:       pins,
		triggers:   cfg.triggers,
		actions:    dispatcher,
		dataLog:    dataLog,
		settings:   cfg.settings,
		tracker:    tracker,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		clock:      clock.Real{},
	}, monitor.WithInterval(opts.interval))
	defer d.ctrl.Close()

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorKV(ctx, "HTTP server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.InfoKV(ctx, "HTTP status server listening", "addr", opts.httpAddr)
	}

	logger.InfoKV(ctx, "Started",
		"interval", opts.interval,
		"gpio", global.backend,
		"broker", opts.broker,
		"data_log", dataLog.Enabled(),
		"remote_signals", cfg.settings.RemoteSignals,
	)

	refresh := time.NewTicker(opts.interval)
	defer refresh.Stop()

	var heartbeat <-chan time.Time
	if opts.heartbeat > 0 {
		hb := time.NewTicker(opts.heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(ctx, d, refresh.C, heartbeat, sigCh)
}

// daemonDeps are the collaborators of a daemon.
type daemonDeps struct {
	pins       gpio.Pins
	triggers   []config.Trigger
	actions    door.Actions
	dataLog    *datalog.Client
	settings   *config.Settings
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	clock      clock.Clock
}

// daemon ties the monitor to the controller and reports to the tracker and
// MQTT.
type daemon struct {
	ctx        context.Context
	ctrl       *door.Controller
	mon        *monitor.Monitor
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	dataLog    *datalog.Client
}

func newDaemon(deps daemonDeps, monOpts ...monitor.Option) *daemon {
	d := &daemon{
		ctx:        logger.WithName(context.Background(), "main"),
		tracker:    deps.tracker,
		publisher:  deps.publisher,
		mqttStatus: deps.mqttStatus,
		dataLog:    deps.dataLog,
	}

	if deps.clock == nil {
		deps.clock = clock.Real{}
	}
	ctrlDeps := door.Deps{
		Outputs:  deps.pins,
		Actions:  deps.actions,
		Clock:    deps.clock,
		Notifier: door.NotifierFunc(d.notify),
	}
	if deps.dataLog != nil {
		ctrlDeps.DataLog = deps.dataLog
	}
	d.ctrl = door.NewController(ctrlDeps, *deps.settings)

	monOpts = append([]monitor.Option{monitor.WithClock(deps.clock)}, monOpts...)
	d.mon = monitor.New(deps.pins, deps.triggers, monOpts...)
	return d
}

func runLoop(ctx context.Context, d *daemon, refresh, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	if err := d.ctrl.Init(); err != nil {
		return fmt.Errorf("init outputs: %w", err)
	}
	if err := d.mon.Register(d.handle); err != nil {
		return err
	}

	d.publishSystem("STARTUP", "", true)

	if err := d.mon.Start(ctx); err != nil {
		return err
	}

	for {
		select {
		case s := <-sig:
			logger.InfoKV(d.ctx, "Received signal, shutting down", "signal", s)
			d.mon.Stop()
			err := d.mon.Wait()
			d.publishSystem("SHUTDOWN", signalName(s), true)
			return err

		case <-d.mon.Done():
			err := d.mon.Wait()
			reason := "STOPPED"
			if err != nil {
				reason = "LISTENER_ERROR"
			}
			d.publishSystem("SHUTDOWN", reason, true)
			if err != nil {
				return fmt.Errorf("event monitoring stopped: %w", err)
			}
			return nil

		case <-refresh:
			d.refresh()

		case <-heartbeat:
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			d.publishSystem("HEARTBEAT", "", false)
		}
	}
}

// handle is the monitor listener.
func (d *daemon) handle(event string) error {
	err := d.ctrl.Handle(event)
	d.refresh()
	return err
}

// notify records a controller transition and publishes it.
func (d *daemon) notify(tr door.Transition) {
	logger.InfoKV(d.ctx, "Transition", "type", tr.Type, "door", tr.Door, "alert", tr.Alert)
	d.tracker.Record(tr)
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(tr); err != nil {
		logger.WarnKV(d.ctx, "Publish transition failed", "type", tr.Type, "error", err)
	}
}

// refresh copies controller, input and connectivity state into the tracker.
func (d *daemon) refresh() {
	inputs, at := d.mon.Snapshot()
	d.tracker.Update(d.ctrl.Snapshot(), inputs, at)
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.dataLog != nil {
		sent, failed, dropped := d.dataLog.Stats()
		d.tracker.SetDataLog(status.DataLogStats{Sent: sent, Failed: failed, Dropped: dropped})
	}
}

// publishSystem publishes a lifecycle event carrying a full status snapshot.
func (d *daemon) publishSystem(event, reason string, retained bool) {
	d.refresh()
	if d.publisher == nil {
		return
	}

	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		logger.WarnKV(d.ctx, "Publish system event failed", "event", event, "error", err)
		return
	}
	logger.DebugKV(d.ctx, "Published system event", "event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
