// brickd - Brick Hill legacy game server
//
// brickd accepts Brick Hill legacy clients over TCP, authenticates them
// against the identity service, runs the authoritative world and exposes a
// REST API, Prometheus metrics and MQTT telemetry for operators.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/brickd-project/brickd/internal/api"
	"github.com/brickd-project/brickd/internal/cli"
	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/connector"
	"github.com/brickd-project/brickd/internal/db"
	"github.com/brickd-project/brickd/internal/dispatch"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/health"
	"github.com/brickd-project/brickd/internal/network"
	"github.com/brickd-project/brickd/internal/scheduler"
	"github.com/brickd-project/brickd/internal/server"
	"github.com/brickd-project/brickd/internal/telemetry"
	"github.com/brickd-project/brickd/internal/util"
	"github.com/brickd-project/brickd/internal/world"
)

const (
	AppName = "brickd"
	Banner  = `
  _          _      _       _
 | |__  _ __(_) ___| | ____| |
 | '_ \| '__| |/ __| |/ / _' |
 | |_) | |  | | (__|   < (_| |
 |_.__/|_|  |_|\___|_|\_\__,_|  v%s
 Brick Hill legacy game server
`
	shutdownReason = "Server is shutting down."
	lagProbeEvery  = 5 * time.Second
)

// AppVersion is set at build time.
var AppVersion = "1.0.0"

type options struct {
	configDir string
	local     bool
	port      int
	logLevel  string
	setup     bool
	noConsole bool
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         "Brick Hill legacy game server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	flags := rootCmd.Flags()
	flags.StringVar(&opts.configDir, "config-dir", config.DefaultConfigDir, "directory holding config.json")
	flags.BoolVar(&opts.local, "local", false, "run on 127.0.0.1 without the identity service")
	flags.IntVar(&opts.port, "port", 0, "override the game port")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")
	flags.BoolVar(&opts.setup, "setup", false, "run the setup wizard before starting")
	flags.BoolVar(&opts.noConsole, "no-console", false, "disable the interactive console")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s/%s)\n", AppName, AppVersion, runtime.GOOS, runtime.GOARCH)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, opts options) error {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	bootLog, err := util.InitLogger(util.DefaultLogConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlags(cmd, cfg, opts)

	app := cfg.GetApplicationData()
	logFile, err := util.InitLogger(util.LogConfig{
		Level:      app.Logging.Level,
		Directory:  app.Logging.Directory,
		MaxSizeMB:  app.Logging.MaxSizeMB,
		MaxBackups: app.Logging.MaxBackups,
		Console:    true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
		if bootLog != nil {
			defer bootLog.Close()
		}
	} else {
		if bootLog != nil {
			bootLog.Close()
		}
		if logFile != nil {
			defer logFile.Close()
		}
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting brickd")

	if opts.setup || cfg.IsFirstRun() {
		log.Info().Msg("launching setup wizard")
		if err := config.RunSetupWizard(cfg); err != nil {
			return fmt.Errorf("setup wizard failed: %w", err)
		}
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return fmt.Errorf("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()
	metrics := telemetry.NewMetrics()

	notifier := connector.NewDiscordNotifier(cfg, AppVersion)
	if notifier.Enabled() {
		notifier.Subscribe(eventBus)
		if cfg.GetApplicationData().Discord.NotifyStartup {
			go func() {
				msg := fmt.Sprintf("%s is listening on %s", cfg.GetGameData().ServerName, cfg.ListenAddr())
				if err := notifier.Notify(ctx, "Server started", msg, "info"); err != nil {
					log.Warn().Err(err).Msg("startup notification failed")
				}
			}()
		}
	}

	wopts, err := worldOptions(cfg, metrics)
	if err != nil {
		return err
	}
	w := world.New(wopts)

	var store *db.Store
	if path := cfg.GetApplicationData().Database.Path; path != "" {
		store, err = db.Open(path)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open database, bans and audit log disabled")
			store = nil
		} else {
			defer store.Close()
			if n, err := store.CloseOpenSessions(ctx, time.Now()); err == nil && n > 0 {
				log.Info().Int64("sessions", n).Msg("closed sessions left open by the previous run")
			}
			store.Subscribe(eventBus)
		}
	}

	dispatchOpts := dispatch.Options{
		ClientVersion: cfg.GetGameData().ClientVersion,
		AuthTimeout:   cfg.AuthTimeout(),
		Verifier:      connector.NewIdentityService(cfg, AppVersion),
		Bus:           eventBus,
		Metrics:       metrics,
	}
	if store != nil {
		dispatchOpts.Bans = store
	}
	dispatcher := dispatch.New(ctx, w, dispatchOpts)

	tcpListener := network.NewTCPListener(cfg, dispatcher, metrics)
	mgr := server.NewManager(cfg, eventBus, w, tcpListener.Registry(), store)
	lagMonitor := server.NewLagMonitor(w, eventBus)

	var mqttPublisher *telemetry.MQTTPublisher
	if cfg.GetApplicationData().MQTT.Enabled {
		mqttPublisher, err = telemetry.NewMQTTPublisher(cfg, eventBus, AppVersion)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var chatPruner scheduler.ChatPruner
	var dbPinger health.Pinger
	if store != nil {
		chatPruner = store
		dbPinger = store
	}
	sched := scheduler.NewScheduler(cfg, eventBus, mgr, chatPruner)
	healthMgr := health.NewManager(cfg, eventBus, dbPinger, lagMonitor)

	// ---------------------------------------------------------------
	// Launch all concurrent tasks
	// ---------------------------------------------------------------
	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	worldDone := make(chan struct{})

	// The world outlives the other tasks so the shutdown kick can still
	// remove players cleanly.
	worldCtx, stopWorld := context.WithCancel(context.Background())
	defer stopWorld()
	go func() {
		defer close(worldDone)
		if err := w.Run(worldCtx); err != nil {
			errCh <- fmt.Errorf("world: %w", err)
		}
	}()

	if err := createTeams(ctx, w, cfg.GetGameData().Teams); err != nil {
		return err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.ListenAddr()).Msg("starting game listener")
		if err := startWithRetry(ctx, "game listener", tcpListener.Start, 5); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("game listener: %w", err)
		}
	}()

	if cfg.GetApplicationData().API.Enabled {
		apiServer := api.NewServer(cfg, eventBus, mgr, metrics, lagMonitor, AppVersion)
		apiServer.SetHealth(healthMgr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := startWithRetry(ctx, "API server", apiServer.Start, 5); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		}()
	}

	if mqttPublisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttPublisher.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		lagMonitor.Start(ctx, lagProbeEvery)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		healthMgr.Start(ctx)
	}()

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	if !opts.noConsole {
		console := cli.NewCLI(cfg, mgr, os.Stdin, os.Stdout, func() {
			quitOnce.Do(func() { close(quitCh) })
		})
		go console.Start(ctx)
	}

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-quitCh:
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")

	mgr.Shutdown(shutdownReason)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	stopWorld()
	<-worldDone
	eventBus.Stop()

	log.Info().Msg("brickd stopped")
	return runErr
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) {
	gd := cfg.GetGameData()
	if cmd.Flags().Changed("local") {
		gd.Local = opts.local
	}
	if opts.port > 0 {
		gd.Port = opts.port
	}
	cfg.SetGameData(gd)

	if opts.logLevel != "" {
		app := cfg.GetApplicationData()
		app.Logging.Level = opts.logLevel
		cfg.SetApplicationData(app)
	}
}

// startWithRetry calls startFn until it succeeds or retries run out.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("bind failed, retrying in 3s...")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
	return lastErr
}
