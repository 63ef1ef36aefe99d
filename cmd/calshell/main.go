package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"calshell/internal/battery"
	"calshell/internal/capture"
	"calshell/internal/config"
	appLog "calshell/internal/log"
	"calshell/internal/scheduler"
	"calshell/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := conf.ApplyEnv(nil); err != nil {
		appLog.Error("invalid environment override", err)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.LogLevel = "debug"
		if os.Getenv(config.EnvPrefix+"CACHE_DIR") == "" {
			conf.CacheDir = "./cache"
		}
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"ics_count", len(conf.ICS),
		"cache_dir", conf.CacheDir,
		"capture", conf.Capture.Enabled,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agenda := web.NewAgenda(conf, nil, 10*time.Minute)
	job := scheduler.RefreshJob(agenda, captureJob(conf))

	if flags.once {
		if conf.Capture.Enabled {
			err = runWithServer(ctx, conf, agenda, job)
		} else {
			err = job(ctx)
		}
		if err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	sched, err := scheduler.New(conf.RefreshCron, conf.Location(), job)
	if err != nil {
		appLog.Error("failed to create scheduler", err)
		os.Exit(1)
	}
	sched.Start(ctx)
	defer sched.Stop()

	// Warm the cache without delaying startup.
	go func() {
		if err := agenda.Refresh(ctx); err != nil {
			appLog.Warn("initial refresh incomplete", "reason", err)
		}
	}()

	if err := serve(ctx, conf, agenda); err != nil {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}
	appLog.Info("calshell exiting")
}

func newServer(ctx context.Context, conf *config.Config, agenda *web.Agenda) *web.Server {
	br := battery.NewCached(battery.Detect(ctx), 30*time.Second)
	return web.NewServer(conf, agenda, br)
}

func serve(ctx context.Context, conf *config.Config, agenda *web.Agenda) error {
	return newServer(ctx, conf, agenda).ListenAndServe(ctx)
}

// runWithServer serves the page for the duration of job, since the capture
// loads it over HTTP. The address is bound before job starts.
func runWithServer(ctx context.Context, conf *config.Config, agenda *web.Agenda, job scheduler.Job) error {
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}
	srvCtx, cancel := context.WithCancel(ctx)
	srvErr := make(chan error, 1)
	go func() { srvErr <- newServer(srvCtx, conf, agenda).Serve(srvCtx, ln) }()

	jobErr := job(ctx)
	cancel()
	if err := <-srvErr; err != nil {
		return errors.Join(jobErr, fmt.Errorf("http server: %w", err))
	}
	return jobErr
}

func captureJob(conf *config.Config) scheduler.Job {
	if !conf.Capture.Enabled {
		return nil
	}
	return func(ctx context.Context) error {
		opts := capture.Options{
			URL:     conf.CaptureURL(),
			Output:  conf.PreviewPath(),
			Width:   conf.Capture.Width,
			Height:  conf.Capture.Height,
			Mobile:  conf.Capture.Mobile,
			Timeout: time.Duration(conf.Capture.TimeoutSeconds) * time.Second,
		}
		if opts.Mobile {
			opts.Width, opts.Height = conf.Capture.MobileWidth, conf.Capture.MobileHeight
		}
		if err := capture.Page(ctx, opts); err != nil {
			return err
		}
		appLog.Info("preview captured", "output", opts.Output, "mobile", opts.Mobile)
		return nil
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig
	flag.StringVar(&cfg.configPath, "config", "/etc/calshell/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh (+capture) cycle and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and ./cache as cache dir")
	flag.Parse()
	return cfg
}
