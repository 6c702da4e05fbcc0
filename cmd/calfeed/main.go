package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"calfeed/internal/config"
	"calfeed/internal/export"
	"calfeed/internal/feed"
	"calfeed/internal/ics"
	appLog "calfeed/internal/log"
	"calfeed/internal/model"
	"calfeed/internal/scheduler"
	"calfeed/internal/web"
)

const version = "0.1.0"

// exitNotCalendar is returned by -file when the document fails the
// BEGIN:VCALENDAR check.
const exitNotCalendar = 2

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	file       string
	format     string
	engine     string
	level      string
}

func main() {
	flags := parseFlags()

	if flags.level != "" {
		appLog.SetLevel(appLog.ParseLevel(flags.level))
	}

	// A single local document needs no config at all.
	if flags.file != "" {
		os.Exit(runFile(flags, os.Stdin, os.Stdout))
	}

	appLog.Info("calfeed starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.engine != "" {
		conf.Engine = flags.engine
	}
	if flags.level == "" {
		appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"engine", conf.Engine,
		"cache_dir", conf.CacheDir,
		"feed_count", len(conf.Feeds),
		"once", flags.once,
	)

	engine, err := ics.EngineByName(conf.Engine)
	if err != nil {
		appLog.Error("invalid engine", err)
		os.Exit(1)
	}

	pipeline := feed.NewPipeline(
		feed.SourcesFromConfig(conf.Feeds),
		ics.NewFetcher(conf.CacheDir, conf.FetchTimeout),
		engine,
	)
	refresher := &feed.Refresher{Pipeline: pipeline, Store: feed.NewStore()}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		snap := refresher.Refresh(ctx)
		if err := writeExport(os.Stdout, flags.format, snap); err != nil {
			appLog.Error("export failed", err, "format", flags.format)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, refresher); err != nil {
		appLog.Error("server stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("calfeed exiting")
}

func serve(ctx context.Context, conf *config.Config, refresher *feed.Refresher) error {
	sched, err := scheduler.New(conf.RefreshCron, func(ctx context.Context) {
		refresher.Refresh(ctx)
	})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	return web.NewServer(conf, refresher.Store, refresher).Run(ctx)
}

// runFile parses one document from flags.file ("-" for stdin) and writes the
// export to out. It returns the process exit code.
func runFile(flags flagConfig, stdin io.Reader, out io.Writer) int {
	var (
		body []byte
		err  error
	)
	if flags.file == "-" {
		body, err = io.ReadAll(stdin)
	} else {
		body, err = os.ReadFile(flags.file)
	}
	if err != nil {
		appLog.Error("failed to read document", err, "file", flags.file)
		return 1
	}

	engine, err := ics.EngineByName(flags.engine)
	if err != nil {
		appLog.Error("invalid engine", err)
		return 1
	}

	events, stats, err := feed.ParseBody(engine, body)
	if err != nil {
		appLog.Error("document rejected", err, "file", flags.file)
		return exitNotCalendar
	}
	appLog.Debug("document parsed", "file", flags.file, "event_count", stats.Emitted,
		"missing_start", stats.MissingStart, "unterminated", stats.Unterminated)

	snap := feed.Snapshot{}
	for _, ev := range events {
		snap.Occurrences = append(snap.Occurrences, model.Occurrence{Event: ev})
	}
	if err := writeExport(out, flags.format, snap); err != nil {
		appLog.Error("export failed", err, "format", flags.format)
		return 1
	}
	return 0
}

func writeExport(w io.Writer, format string, snap feed.Snapshot) error {
	enc, err := export.ByName(format)
	if err != nil {
		return err
	}
	err = enc.Encode(w, snap.Occurrences)
	if errors.Is(err, export.ErrNothingToEncode) {
		appLog.Info("no events to export", "format", format)
		return nil
	}
	return err
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/calfeed/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh all feeds once, print the export and exit")
	flag.StringVar(&cfg.file, "file", "", "Parse a single local document (\"-\" for stdin) and exit")
	flag.StringVar(&cfg.format, "format", "json", "Output format for -once/-file: json, ics, xcal")
	flag.StringVar(&cfg.engine, "engine", "", "Parser engine: native or golang-ical (overrides config if set)")
	flag.StringVar(&cfg.level, "level", "", "Log level: debug, info, error (overrides config if set)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: calfeed [flags]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	return cfg
}
