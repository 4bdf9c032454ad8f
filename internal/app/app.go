package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/ocupado/internal/config"
	"github.com/five82/ocupado/internal/httpapi"
	"github.com/five82/ocupado/internal/logging"
	"github.com/five82/ocupado/internal/metrics"
	"github.com/five82/ocupado/internal/monitor"
	"github.com/five82/ocupado/internal/mqttpub"
	"github.com/five82/ocupado/internal/netwatch"
	"github.com/five82/ocupado/internal/particle"
	"github.com/five82/ocupado/internal/prefs"
	"github.com/five82/ocupado/internal/state"
	"github.com/five82/ocupado/internal/ui"
)

// Options configure the ocupado application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/ocupado/prefs.toml
	Headless   bool   // no TUI; logs go to stderr
}

// Run boots ocupado until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOut, closeLog, err := openLogOutput(cfg, opts.Headless)
	if err != nil {
		return err
	}
	defer closeLog()
	log := logging.New(cfg.LogLevel, logOut)
	log.Info().Int("devices", len(cfg.Devices)).Str("base_url", cfg.BaseURL).Msg("starting")

	cloud, err := particle.NewClient(cfg.BaseURL, cfg.AccessToken)
	if err != nil {
		return fmt.Errorf("init particle client: %w", err)
	}

	store := &state.Store{}
	reg := metrics.New()
	sinks := monitor.Fanout{store, reg}

	if cfg.MQTT.Enabled() {
		pub, err := mqttpub.New(mqttpub.Options{
			Broker:      cfg.MQTT.Broker,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			Logger:      log,
		})
		if err != nil {
			log.Warn().Err(err).Msg("mqtt disabled")
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	mgr, err := monitor.New(monitor.Options{
		Devices:    cfg.DeviceSpecs(),
		Cloud:      cloud,
		Sink:       sinks,
		Logger:     log,
		RetryDelay: cfg.RetryDelay,
		Metrics:    reg,
	})
	if err != nil {
		return fmt.Errorf("init monitor: %w", err)
	}
	// Show every device as disconnected until the first network verdict.
	sinks.Publish(mgr.Snapshot())

	watcher, err := netwatch.New(netwatch.Options{
		Prober:   cloud,
		Interval: cfg.ProbeEvery,
		Logger:   log,
		OnChange: onNetworkChange(ctx, store, mgr, log),
	})
	if err != nil {
		return fmt.Errorf("init network watcher: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		mgr.Close()
		log.Info().Msg("stopped")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(runCtx)
	}()

	if cfg.HTTPAddr != "" {
		api := httpapi.NewHandler(log, store, mgr, reg.Handler())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(runCtx, cfg.HTTPAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.HTTPAddr).Msg("status api stopped")
			}
		}()
	}

	if opts.Headless {
		<-runCtx.Done()
		return nil
	}

	userPrefs, _ := prefs.LoadWithFallback(opts.PrefsPath, cfg.Theme)
	return ui.Run(runCtx, ui.Options{
		Store:     store,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		LogPath:   cfg.LogFile,
	})
}

// openLogOutput keeps the TUI's terminal free of log lines.
func openLogOutput(cfg config.Config, headless bool) (io.Writer, func(), error) {
	if headless {
		return os.Stderr, func() {}, nil
	}
	f, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

type activator interface {
	Activate(ctx context.Context) error
	Deactivate()
}

type networkStatus interface {
	SetNetwork(online bool)
	SetError(err error)
}

// onNetworkChange maps reachability transitions onto the monitor: streams
// run only while the cloud is reachable.
func onNetworkChange(ctx context.Context, status networkStatus, mgr activator, log zerolog.Logger) func(bool) {
	return func(online bool) {
		status.SetNetwork(online)
		if !online {
			mgr.Deactivate()
			return
		}
		if err := mgr.Activate(ctx); err != nil {
			log.Error().Err(err).Msg("activate monitor")
			status.SetError(fmt.Errorf("activate: %w", err))
			return
		}
		status.SetError(nil)
	}
}
