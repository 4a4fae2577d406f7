package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"syllasync/internal/config"
	appLog "syllasync/internal/log"
	"syllasync/internal/model"
)

const version = "0.3.0"

const defaultListen = "127.0.0.1:8787"

// flagConfig holds CLI flag values. Non-empty values override the config
// file.
type flagConfig struct {
	configPath string
	baseURL    string
	calendar   string
	out        string
	cookie     string
	serve      bool
	preview    bool
	login      bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := applyFlags(conf, flags); err != nil {
		appLog.Error("invalid flags", err)
		os.Exit(2)
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	level := conf.Log.Level
	if flags.debug {
		level = string(appLog.LevelDebug)
	}
	appLog.Init(appLog.Options{
		Level: appLog.ParseLevel(level),
		File:  conf.Log.File,
		JSON:  conf.Log.JSON,
	})

	appLog.Info("syllasync starting", "version", version)
	appLog.Debug("effective config",
		"base_url", conf.BaseURL,
		"calendar", conf.Calendar,
		"accept", conf.Accept,
		"download_dir", conf.DownloadDir,
		"upload_timeout", conf.UploadTimeout.String(),
		"schedule", conf.Schedule,
		"listen", conf.Listen,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(conf, flags.configPath)
	if err != nil {
		appLog.Error("failed to initialize", err)
		os.Exit(1)
	}

	cmd, args := "", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	code := 0
	switch cmd {
	case "status":
		code = app.status(ctx)
	case "login":
		code = app.login(ctx, flags.cookie != "")
	case "upload":
		code = app.upload(ctx, args, flags.preview, flags.login)
	case "":
		if !flags.serve && conf.Listen == "" && conf.Schedule == "" {
			flag.Usage()
			code = 2
			break
		}
		if flags.serve && conf.Listen == "" {
			conf.Listen = defaultListen
		}
		code = app.daemon(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		flag.Usage()
		code = 2
	}

	appLog.Info("syllasync exiting", "code", code)
	stop()
	_ = appLog.Sync()
	os.Exit(code)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", config.DefaultPath(), "Path to config file")
	flag.StringVar(&cfg.baseURL, "base-url", "", "Backend base URL (overrides config if set)")
	flag.StringVar(&cfg.calendar, "calendar", "", "Delivery mode: google or apple (overrides config if set)")
	flag.StringVar(&cfg.out, "out", "", "Directory for calendar-events.ics (overrides config if set)")
	flag.StringVar(&cfg.cookie, "session-cookie", "", "Backend session cookie as name=value, copied from the browser after sign-in")
	flag.BoolVar(&cfg.serve, "serve", false, "Start the local web front (on config listen, or "+defaultListen+")")
	flag.BoolVar(&cfg.preview, "preview", false, "List upcoming events from the downloaded calendar file")
	flag.BoolVar(&cfg.login, "login", false, "Open the sign-in page when the session is not authorized")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: syllasync [flags] [status|login|upload] [paths...]\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	return cfg
}

func applyFlags(conf *config.Config, flags flagConfig) error {
	if flags.baseURL != "" {
		conf.BaseURL = flags.baseURL
	}
	if flags.calendar != "" {
		mode, err := model.ParseDeliveryMode(flags.calendar)
		if err != nil {
			return err
		}
		conf.Calendar = string(mode)
	}
	if flags.out != "" {
		conf.DownloadDir = flags.out
	}
	if flags.cookie != "" {
		conf.SessionCookie = flags.cookie
	}
	conf.Normalize()
	return nil
}
