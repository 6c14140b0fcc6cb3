package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ato_controller/internal/alarm"
	"ato_controller/internal/broadcast"
	"ato_controller/internal/config"
	"ato_controller/internal/control"
	"ato_controller/internal/handlers"
	"ato_controller/internal/hardware"
	"ato_controller/internal/logger"
	"ato_controller/internal/manifest"
	"ato_controller/internal/metrics"
	"ato_controller/internal/models"
	"ato_controller/internal/repository"
	sqlitedb "ato_controller/internal/repository/db"
	"ato_controller/internal/sensor"
	"ato_controller/internal/server"
	"ato_controller/internal/service"
	"ato_controller/internal/state"
	"ato_controller/internal/updater"
)

const (
	shutdownTimeout = 10 * time.Second
	seedTimeout     = 5 * time.Second
	firmwarePerm    = 0o755
	contentPerm     = 0o644
)

func runServe(cfg *config.Config) error {
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)

	firmware := cfg.Update.FirmwareVersion
	if firmware == "" {
		firmware = version
	}
	log.Infow("starting", "firmware", firmware, "hardware", cfg.Hardware.Driver)

	db, err := openDB(cfg.DB.Path, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()

	bolt, err := repository.OpenSettings(cfg.DB.SettingsPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer func() { _ = bolt.Close() }()

	repos := repository.NewRepository(db, bolt)
	journal := service.NewJournal(repos.EventRepo, repos.ReadingRepo, cfg.Control.HistoryRetention, log.Component("journal"))
	journal.SetEventRetention(cfg.Control.EventRetention)

	settings, err := service.NewSettingsService(repos.Settings, journal, log.Component("settings"))
	if err != nil {
		return err
	}
	device := settings.Device()

	board, sim, err := openBoard(cfg.Hardware)
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}
	defer func() { _ = board.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	params := control.Params{
		PumpTimeout:        cfg.Control.PumpTimeout,
		PumpCooldown:       cfg.Control.PumpCooldown,
		MaintenanceTimeout: cfg.Control.MaintenanceTimeout,
	}
	bootedAt := time.Now()
	initial := control.New(bootedAt, device.MinTemp, device.MaxTemp)
	shared := state.New(initial)

	monitoring := service.NewMonitoringService(shared, settings, params, firmware, cfg.Control.HistoryRetention, bootedAt)
	seedCtx, seedCancel := context.WithTimeout(ctx, seedTimeout)
	if err := monitoring.Seed(seedCtx, repos.ReadingRepo, cfg.Control.HistoryRetention); err != nil {
		log.Warnw("history_seed_failed", "err", err)
	}
	seedCancel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	restart := make(chan struct{}, 1)
	updates, err := buildUpdates(cfg, firmware, shared, settings, journal, collector, restart, log.Component("update"))
	if err != nil {
		return err
	}

	hub := broadcast.NewHub(log.Component("ws"))
	broadcasters := broadcast.Multi{hub}

	// MQTT commands are queued until the controller exists.
	mqttCommands := make(chan models.Command, 8)
	if cfg.MQTT.Enabled {
		mq, err := broadcast.NewMQTT(broadcast.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			ClientID:    cfg.MQTT.ClientID,
		}, device.DeviceName, func(cmd models.Command) {
			select {
			case mqttCommands <- cmd:
			default:
				log.Warnw("mqtt_command_dropped")
			}
		}, log.Component("mqtt"))
		if err != nil {
			log.Warnw("mqtt_disabled", "err", err)
		} else {
			defer mq.Close()
			broadcasters = append(broadcasters, mq)
		}
	}

	var samples <-chan control.Sample
	if board.Probe != nil {
		sampler := sensor.NewTemperatureSampler(board.Probe, cfg.Control.TempSamplePeriod, nil, log.Component("probe"))
		samples = sampler.Samples()
		spawn(func() { sampler.Run(ctx) })
	} else {
		log.Warnw("no_temperature_probe")
	}

	var watchdog *service.Watchdog
	if cfg.Watchdog.Enabled {
		watchdog = service.NewWatchdog(log)
	}

	ctrl := service.NewControlService(initial, service.ControllerOptions{
		Board:       board,
		Monitor:     sensor.NewMonitor(board.Sump, board.Emergency, board.Rodi, log.Component("sensor")),
		Samples:     samples,
		Shared:      shared,
		Params:      params,
		Alarm:       alarm.NewDriver(board.Buzzer, cfg.Alarm.BurstBeeps, cfg.Alarm.BeepLength),
		TempAlert:   alarm.NewTempAlert(cfg.Alarm.TempAlertRepeat),
		Blinker:     alarm.NewBlinker(cfg.Alarm.UpdateBlink),
		Status:      monitoring,
		History:     monitoring,
		Journal:     journal,
		Broadcaster: broadcasters,
		Metrics:     collector,
		Watchdog:    watchdog,
		Log:         log.Component("control"),
	})
	settings.OnBandChange(ctrl.SetBand)

	spawn(func() { journal.Run(ctx) })
	if sim != nil {
		spawn(func() { sim.Run(ctx, cfg.Hardware.SimTick) })
	}
	spawn(func() { ctrl.Run(ctx, cfg.Control.Cycle) })
	spawn(func() { forwardCommands(ctx, ctrl, mqttCommands, log) })

	if err := updates.Start(ctx); err != nil {
		log.Warnw("update_schedule_disabled", "err", err)
	} else {
		defer updates.Stop()
	}

	services := &service.Service{
		Control:       ctrl,
		Settings:      settings,
		Monitoring:    monitoring,
		EventLog:      service.NewEventLogService(repos.EventRepo),
		Updates:       updates,
		Authorization: service.NewAuthService(repos.Auth, cfg.Auth.SigningKey, cfg.Auth.TokenTTL, service.OpenSignUp(cfg.Auth.OpenSignUp)),
	}

	content := handlers.NewContentServer(cfg.Update.ContentPath, log.Component("content"))
	defer func() { _ = content.Close() }()
	opts := []handlers.Option{handlers.WithHub(hub), handlers.WithContent(content)}
	if cfg.Metrics.Enabled {
		opts = append(opts, handlers.WithMetrics(collector, metrics.Handler(reg)))
	}
	apiHandler := handlers.NewHandler(services, log.Component("http"), opts...)

	srv := &server.Server{}
	if err := srv.Listen(cfg.HTTP.Port); err != nil {
		cancel()
		wg.Wait()
		return fmt.Errorf("listen on %q: %w", cfg.HTTP.Port, err)
	}
	log.Infow("http_listening", "addr", srv.Addr().String())
	serveErr := runHTTPServer(srv, apiHandler)

	service.Ready(log)
	restartRequested, httpErr := waitForShutdown(restart, serveErr, log)

	service.Stopping()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// stop background goroutines; the controller switches the outputs off
	cancel()
	wg.Wait()

	if httpErr != nil {
		return fmt.Errorf("http server: %w", httpErr)
	}
	if restartRequested {
		log.Infow("restarting", "path", cfg.Update.FirmwarePath)
		_ = board.Close()
		_ = bolt.Close()
		_ = db.Close()
		_ = log.Sync()
		return syscall.Exec(cfg.Update.FirmwarePath, os.Args, os.Environ())
	}
	log.Infow("stopped")
	return nil
}

func buildUpdates(cfg *config.Config, firmware string, shared *state.Shared, settings *service.SettingsService,
	journal *service.Journal, collector *metrics.Collector, restart chan<- struct{}, log *logger.Logger) (*service.UpdateService, error) {
	verifier, err := updater.LoadVerifier(cfg.Update.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	firmwareTarget := updater.NewFileTarget(cfg.Update.FirmwarePath, firmwarePerm)
	firmwareTarget.Log = log
	contentTarget := updater.NewFileTarget(cfg.Update.ContentPath, contentPerm)
	contentTarget.Log = log
	upd, err := updater.New(updater.Options{
		Client:   &http.Client{},
		Verifier: verifier,
		Spool:    updater.NewSpool(cfg.Update.SpoolDir),
		Destinations: map[updater.Kind]updater.Destination{
			updater.KindFirmware: {Target: firmwareTarget, Strategy: updater.Staged},
			updater.KindContent:  {Target: contentTarget, Strategy: updater.Direct},
		},
		Timeouts: updater.Timeouts{
			Request:   cfg.Update.RequestTimeout,
			Download:  cfg.Update.DownloadTimeout,
			Signature: cfg.Update.SignatureTimeout,
		},
		SpaceMargin:  cfg.Update.SpaceMargin,
		MaxImageSize: cfg.Update.MaxImageSize,
		ChunkSize:    cfg.Update.ChunkSize,
		Observer:     service.PublishProgress(shared),
		Log:          log,
	})
	if err != nil {
		return nil, err
	}

	checker := manifest.NewChecker(manifest.Config{
		URL:             cfg.Update.ManifestURL,
		Username:        cfg.Update.Username,
		Password:        cfg.Update.Password,
		Timeout:         cfg.Update.CheckTimeout,
		FirmwareVersion: firmware,
	}, &http.Client{}, settings.InstalledContentVersion, shared, log)

	return service.NewUpdateService(service.UpdateOptions{
		Checker:      checker,
		Applier:      upd,
		Shared:       shared,
		Content:      settings,
		Events:       journal,
		Metrics:      collector,
		Schedule:     cfg.Update.Schedule,
		CheckTimeout: cfg.Update.CheckTimeout,
		Restart: func() {
			select {
			case restart <- struct{}{}:
			default:
			}
		},
		RestartDelay: cfg.Update.RestartDelay,
		Log:          log,
	}), nil
}

// openDB initializes the SQLite database using configuration.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "ato.db")
		path = "ato.db"
	}
	return sqlitedb.InitDB(path)
}

// openBoard returns the simulator too when the sim driver is selected, so
// the caller can run its water model.
func openBoard(cfg config.HardwareConfig) (*hardware.Board, *hardware.Simulator, error) {
	if cfg.Driver == "gpio" {
		b, err := hardware.OpenGPIO(cfg)
		return b, nil, err
	}
	sim := hardware.NewSimulator()
	return sim.Board(), sim, nil
}

func forwardCommands(ctx context.Context, ctrl service.Control, cmds <-chan models.Command, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-cmds:
			if err := ctrl.Execute(ctx, cmd); err != nil {
				log.Warnw("mqtt_command_failed", "err", err)
			}
		}
	}
}

// runHTTPServer serves the bound listener in a separate goroutine. A
// failure is delivered on the returned channel so the caller can still run
// the orderly shutdown that switches the outputs off.
func runHTTPServer(srv *server.Server, handler *handlers.Handler) <-chan error {
	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(handler.InitRoutes()); err != nil {
			errc <- err
		}
	}()
	return errc
}

// waitForShutdown blocks until a termination signal, a restart request or
// an HTTP server failure. It reports whether a restart was requested.
func waitForShutdown(restart <-chan struct{}, serveErr <-chan error, log *logger.Logger) (bool, error) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Infow("shutting down server...", "signal", sig.String())
		return false, nil
	case <-restart:
		log.Infow("restart requested after firmware update")
		return true, nil
	case err := <-serveErr:
		log.Errorw("http_serve_failed", "err", err)
		return false, err
	}
}
