package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gdqnow/internal/config"
	"gdqnow/internal/display"
	"gdqnow/internal/htmltable"
	appLog "gdqnow/internal/log"
	"gdqnow/internal/refresh"
	"gdqnow/internal/render"
	"gdqnow/internal/schedule"
	"gdqnow/internal/scheduler"
	"gdqnow/internal/source"
	"gdqnow/internal/web"
)

var version = "0.1.0-dev"

type flagConfig struct {
	configPath   string
	listen       string
	once         bool
	dump         bool
	hashPassword string
	showVersion  bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Println("gdqnow", version)
		return
	}
	if flags.hashPassword != "" {
		hash, err := web.HashPassword(flags.hashPassword)
		if err != nil {
			appLog.Error("failed to hash password", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("gdqnow starting", "version", version)
	appLog.Info("effective config",
		"url", conf.Source.URL,
		"mode", conf.Source.Mode,
		"selector", conf.Source.Selector,
		"interval", conf.Interval.String(),
		"refresh", conf.RefreshCron,
		"output", conf.Output,
		"listen", conf.Listen,
		"once", flags.once,
		"dump", flags.dump,
	)

	renderer, err := render.New(conf.Format, conf.Icon)
	if err != nil {
		appLog.Error("invalid label format", err, "format", conf.Format)
		os.Exit(1)
	}
	refresher := refresh.New(newFetcher(conf), htmltable.New(conf.Source.Selector), renderer, conf.Interval)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.dump {
		if err := dumpRecords(ctx, refresher); err != nil {
			appLog.Error("dump failed", err)
			os.Exit(1)
		}
		return
	}

	latest := &display.Latest{}
	sinks := display.Multi{latest}
	switch {
	case conf.Output == config.OutputI3Bar:
		sinks = append(sinks, display.NewI3BarSink(os.Stdout, "gdqnow"))
	case conf.Output == config.OutputText, flags.once:
		sinks = append(sinks, display.NewTextSink(os.Stdout))
	}

	sched, err := scheduler.New(refresher, sinks, scheduler.Options{CronSpec: conf.RefreshCron})
	if err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}

	if flags.once {
		sched.RunOnce(ctx)
		return
	}

	if conf.Listen != "" {
		srv := web.NewServer(conf, latest)
		go func() {
			if err := srv.ListenAndServe(ctx); err != nil {
				appLog.Error("HTTP server failed", err)
				cancel()
			}
		}()
	}

	if err := sched.Run(ctx); err != nil {
		appLog.Error("scheduler failed", err)
		os.Exit(1)
	}
	appLog.Info("gdqnow exiting")
}

func newFetcher(conf *config.Config) source.Fetcher {
	if conf.Source.Mode == config.ModeChromium {
		return source.NewChromiumFetcher(source.ChromiumOptions{
			URL:          conf.Source.URL,
			WaitSelector: conf.Source.Selector,
			UserAgent:    conf.Source.UserAgent,
			Timeout:      conf.Source.Timeout,
		})
	}
	return source.NewHTTPFetcher(source.HTTPOptions{
		URL:       conf.Source.URL,
		UserAgent: conf.Source.UserAgent,
		Timeout:   conf.Source.Timeout,
		CacheDir:  conf.Source.CacheDir,
	})
}

// dumpRecords prints the pipe-separated records the parser sees.
func dumpRecords(ctx context.Context, r *refresh.Refresher) error {
	records, discards, err := r.Records(ctx)
	if err != nil {
		return err
	}
	for _, d := range discards {
		appLog.Warn("dump: skipping row pair", "index", d.Index, "reason", d.Err)
	}
	return schedule.WriteRecords(os.Stdout, records)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./gdqnow.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh, print the label and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "Print the parsed schedule records and exit")
	flag.StringVar(&cfg.hashPassword, "hash-password", "", "Print a bcrypt hash for basic_auth.password_hash and exit")
	flag.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	flag.Parse()

	return cfg
}
