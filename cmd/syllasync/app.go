package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"

	"syllasync/internal/config"
	"syllasync/internal/ics"
	appLog "syllasync/internal/log"
	"syllasync/internal/model"
	"syllasync/internal/response"
	"syllasync/internal/schedule"
	"syllasync/internal/session"
	"syllasync/internal/status"
	"syllasync/internal/upload"
	"syllasync/internal/uploader"
	"syllasync/internal/web"
)

// app carries the shared HTTP client for one process.
type app struct {
	conf       *config.Config
	configPath string
	client     *http.Client
	sessions   *session.Manager
	stdout     io.Writer
}

func newApp(conf *config.Config, configPath string) (*app, error) {
	client, err := upload.NewHTTPClient(conf.BaseURL, conf.SessionCookie)
	if err != nil {
		return nil, err
	}
	return &app{
		conf:       conf,
		configPath: configPath,
		client:     client,
		sessions:   session.NewManager(client, conf.BaseURL, conf.ProbeTimeout),
		stdout:     os.Stdout,
	}, nil
}

// signInHint explains how a browser sign-in reaches this client.
func (a *app) signInHint() string {
	return fmt.Sprintf("sign in at %s, then copy the backend's session cookie from the browser and run:\n"+
		"  syllasync login --session-cookie 'name=value'\n"+
		"(or set session_cookie in %s)", a.sessions.LoginURL(), a.configPath)
}

func (a *app) newController(probe *session.Probe, saver response.Saver) *uploader.Controller {
	return uploader.New(
		probe,
		upload.NewClient(a.client, a.conf.BaseURL, a.conf.UploadTimeout),
		response.NewInterpreter(saver),
		a.conf.DeliveryMode(),
	)
}

func (a *app) status(ctx context.Context) int {
	healthCtx, cancel := context.WithTimeout(ctx, a.conf.ProbeTimeout)
	defer cancel()

	code := 0
	if err := session.Health(healthCtx, a.client, a.conf.BaseURL); err != nil {
		appLog.Error("backend health check failed", err, "base_url", a.conf.BaseURL)
		fmt.Fprintf(a.stdout, "backend:       %s (unreachable: %v)\n", a.conf.BaseURL, err)
		code = 1
	} else {
		fmt.Fprintf(a.stdout, "backend:       %s (ok)\n", a.conf.BaseURL)
	}

	probe := a.sessions.Refresh(ctx)
	fmt.Fprintf(a.stdout, "authenticated: %t\n", probe.Authenticated())
	if err := probe.Err(); err != nil {
		fmt.Fprintf(a.stdout, "               (status check failed: %v)\n", err)
	}
	fmt.Fprintf(a.stdout, "calendar:      %s\n", a.conf.DeliveryMode())
	if !probe.Authenticated() {
		fmt.Fprintln(a.stdout, a.signInHint())
	}
	return code
}

// login opens the sign-in page. When a session cookie was given on the
// command line it is verified instead and, if the backend accepts it,
// saved to the config file.
func (a *app) login(ctx context.Context, cookieGiven bool) int {
	if cookieGiven {
		probe := a.sessions.Refresh(ctx)
		if !probe.Authenticated() {
			fmt.Fprintln(a.stdout, "the backend did not accept the session cookie")
			fmt.Fprintln(a.stdout, a.signInHint())
			return 1
		}
		if err := a.conf.Save(a.configPath); err != nil {
			appLog.Error("failed to save session cookie", err, "config_path", a.configPath)
			return 1
		}
		fmt.Fprintf(a.stdout, "signed in; session cookie saved to %s\n", a.configPath)
		return 0
	}

	target := a.sessions.LoginURL()
	appLog.Info("opening sign-in page", "url", target)
	if err := browser.OpenURL(target); err != nil {
		appLog.Error("failed to open browser", err)
	}
	fmt.Fprintln(a.stdout, a.signInHint())
	return 0
}

func (a *app) upload(ctx context.Context, paths []string, preview, openLogin bool) int {
	if len(paths) == 0 {
		paths = a.conf.Inputs
	}
	files, err := uploader.SelectFromPaths(paths, a.conf.Accept)
	if err != nil {
		appLog.Error("failed to read input files", err)
		return 1
	}

	ctrl := a.newController(a.sessions.Refresh(ctx), response.NewFileSaver(a.conf.DownloadDir))
	if err := ctrl.SetFiles(files); err != nil {
		appLog.Error("failed to select files", err)
		return 1
	}

	if ctrl.View() == uploader.ViewSignIn {
		fmt.Fprintln(a.stdout, "not signed in;", a.signInHint())
		if openLogin {
			if err := browser.OpenURL(ctrl.LoginURL()); err != nil {
				appLog.Error("failed to open browser", err)
			}
		}
	}

	out, err := ctrl.Submit(ctx)
	if err != nil {
		appLog.Error("submission rejected", err)
		return 1
	}

	snap := ctrl.Snapshot()
	status.Render(a.stdout, snap.Stages)
	status.RenderOutcome(a.stdout, out)
	if snap.SavedPath != "" {
		fmt.Fprintf(a.stdout, "saved to %s\n", snap.SavedPath)
		if preview {
			if err := a.preview(snap.SavedPath); err != nil {
				appLog.Error("failed to preview calendar file", err, "path", snap.SavedPath)
			}
		}
	}

	if out.IsError() {
		return 1
	}
	return 0
}

func (a *app) preview(path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	loc := time.Local
	if a.conf.Timezone != "" {
		if loc, err = time.LoadLocation(a.conf.Timezone); err != nil {
			return err
		}
	}

	now := time.Now().In(loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	events, err := ics.Preview(body, loc, from, a.conf.PreviewDays)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "\n%d upcoming event(s) in the next %d days:\n", len(events), a.conf.PreviewDays)
	for _, ev := range events {
		fmt.Fprintln(a.stdout, "  "+formatEvent(ev))
	}
	return nil
}

func formatEvent(ev model.CalendarEvent) string {
	if ev.AllDay {
		return fmt.Sprintf("%s          %s", ev.Start.Format("Mon 2006-01-02"), ev.Summary)
	}
	return fmt.Sprintf("%s %s", ev.Start.Format("Mon 2006-01-02 15:04"), ev.Summary)
}

// daemon runs the local web front and the scheduled re-sync until ctx is
// canceled.
func (a *app) daemon(ctx context.Context) int {
	g, gctx := errgroup.WithContext(ctx)

	if a.conf.Listen != "" {
		downloads := &response.MemorySaver{}
		ctrl := a.newController(a.sessions.Start(gctx), downloads)
		srv := web.NewServer(a.conf, ctrl, downloads, a.sessions)
		g.Go(func() error {
			return srv.Serve(gctx)
		})
	}

	if a.conf.Schedule != "" {
		sched, err := schedule.New(gctx, a.conf.Schedule, a.scheduledRun)
		if err != nil {
			appLog.Error("failed to create scheduler", err)
			return 1
		}
		g.Go(func() error {
			sched.Run(gctx)
			return nil
		})
		if a.conf.SyncOnStart {
			g.Go(func() error {
				sched.RunNow()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("daemon stopped with error", err)
		return 1
	}
	return 0
}

// scheduledRun re-submits the configured inputs with a fresh session probe.
func (a *app) scheduledRun(ctx context.Context) {
	files, err := uploader.SelectFromPaths(a.conf.Inputs, a.conf.Accept)
	if err != nil {
		appLog.Error("scheduled sync: failed to read inputs", err)
		return
	}

	ctrl := a.newController(a.sessions.Refresh(ctx), response.NewFileSaver(a.conf.DownloadDir))
	if err := ctrl.SetFiles(files); err != nil {
		appLog.Error("scheduled sync: failed to select files", err)
		return
	}
	out, err := ctrl.Submit(ctx)
	if err != nil {
		appLog.Error("scheduled sync: submission rejected", err)
		return
	}
	if out.IsError() {
		appLog.Error("scheduled sync failed", errors.New(out.Message), "files", len(files))
		return
	}
	appLog.Info("scheduled sync finished", "files", len(files), "message", out.Message)
}
