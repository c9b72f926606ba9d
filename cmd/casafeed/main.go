package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/italyre/casafeed/pkg/chat"
	"github.com/italyre/casafeed/pkg/config"
	"github.com/italyre/casafeed/pkg/domain"
	"github.com/italyre/casafeed/pkg/feed"
	"github.com/italyre/casafeed/pkg/repository"
	"github.com/italyre/casafeed/pkg/scheduler"
	"github.com/italyre/casafeed/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug)

	log.Printf("[INFO] starting casafeed version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, &opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}

	cancel()
	log.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, opts *Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	repos, err := repository.New(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer repos.Close()

	// seed config-defined sources
	for _, fc := range cfg.Feeds {
		src := domain.FeedSource{Name: fc.Name, URL: fc.URL, Category: fc.Category}
		if err := repos.Feed.EnsureFeed(ctx, &src); err != nil {
			return fmt.Errorf("seed feed %q: %w", fc.Name, err)
		}
	}
	log.Printf("[INFO] %d feed sources configured", len(cfg.Feeds))

	aggregator := feed.NewAggregator(
		feed.NewFetcher(cfg.Aggregator.FetchTimeout, cfg.Aggregator.UserAgent),
		feed.NewParser(cfg.Aggregator.MaxItemsPerFeed),
		repos.Feed,
		repos.Item,
		feed.NewCache(cfg.Aggregator.CacheTTL),
		feed.Params{
			ResultLimit:   cfg.Aggregator.ResultLimit,
			MinFreshItems: cfg.Aggregator.MinFreshItems,
		},
	)

	sched := scheduler.New(aggregator, time.Duration(cfg.Schedule.UpdateInterval)*time.Minute)
	sched.Start(ctx)
	defer sched.Stop()

	listen, timeout := cfg.GetServerConfig()
	srv := server.New(server.Config{
		Listen:      listen,
		Timeout:     timeout,
		AdminSecret: cfg.Server.AdminSecret,
		Version:     revision,
		Debug:       opts.Debug,
		Aggregator:  aggregator,
		Feeds:       repos.Feed,
		Banners:     repos.Banner,
		Chat:        chat.NewResponder(),
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
