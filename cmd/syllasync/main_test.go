package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syllasync/internal/config"
	"syllasync/internal/model"
	"syllasync/internal/response"
)

func TestApplyFlags(t *testing.T) {
	conf := config.DefaultConfig()
	err := applyFlags(conf, flagConfig{
		baseURL:  "http://backend.test:5002/",
		calendar: "file",
		out:      "/tmp/cal",
		cookie:   "session=abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://backend.test:5002", conf.BaseURL)
	assert.Equal(t, string(model.DeliveryFileDownload), conf.Calendar)
	assert.Equal(t, "/tmp/cal", conf.DownloadDir)
	assert.Equal(t, "session=abc", conf.SessionCookie)
}

func TestApplyFlagsKeepsConfigWhenUnset(t *testing.T) {
	conf := config.DefaultConfig()
	conf.BaseURL = "https://syllabus.example.com"
	conf.SessionCookie = "session=xyz"
	require.NoError(t, applyFlags(conf, flagConfig{}))

	assert.Equal(t, "https://syllabus.example.com", conf.BaseURL)
	assert.Equal(t, string(model.DeliveryAccountLinked), conf.Calendar)
	assert.Equal(t, "session=xyz", conf.SessionCookie)
}

func TestApplyFlagsRejectsUnknownCalendar(t *testing.T) {
	conf := config.DefaultConfig()
	assert.Error(t, applyFlags(conf, flagConfig{calendar: "outlook"}))
	assert.Equal(t, string(model.DeliveryAccountLinked), conf.Calendar)
}

func TestFormatEvent(t *testing.T) {
	start := time.Date(2025, 9, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "Wed 2025-09-10 23:00 Homework 1",
		formatEvent(model.CalendarEvent{Summary: "Homework 1", Start: start}))
	assert.Equal(t, "Wed 2025-09-10          Reading week",
		formatEvent(model.CalendarEvent{Summary: "Reading week", Start: start, AllDay: true}))
}

// backend fakes /auth/status and /upload. The session is authorized when
// the request carries session=ok.
type backend struct {
	uploadStatus int
	uploadBody   string
}

func (b backend) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/status", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		_ = json.NewEncoder(w).Encode(map[string]bool{"authenticated": err == nil && c.Value == "ok"})
	})
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("calendar") == string(model.DeliveryFileDownload) {
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = w.Write([]byte(calendarBody))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.uploadStatus)
		_, _ = w.Write([]byte(b.uploadBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const calendarBody = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//syllasync//test//EN\r\nEND:VCALENDAR\r\n"

func testApp(t *testing.T, baseURL, calendar, cookie string) (*app, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	conf := config.DefaultConfig()
	conf.BaseURL = baseURL
	conf.Calendar = calendar
	conf.SessionCookie = cookie
	conf.DownloadDir = filepath.Join(dir, "out")
	conf.ProbeTimeout = 2 * time.Second

	a, err := newApp(conf, filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	var out bytes.Buffer
	a.stdout = &out
	return a, &out
}

func syllabusDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cs101.pdf"), []byte("%PDF-1.4"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600))
	return dir
}

func TestUploadAccountLinkedSucceeds(t *testing.T) {
	srv := backend{uploadStatus: http.StatusOK, uploadBody: `{"message":"Synced 5 events","processing_results":[{"filename":"cs101.pdf","stage":"complete","status":"done"}]}`}.start(t)
	a, out := testApp(t, srv.URL, "google", "session=ok")

	code := a.upload(context.Background(), []string{syllabusDir(t)}, false, false)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "✅ cs101.pdf")
	assert.Contains(t, out.String(), "Synced 5 events")
}

func TestUploadWithoutSessionPrintsSignInHint(t *testing.T) {
	srv := backend{uploadStatus: http.StatusOK, uploadBody: `{}`}.start(t)
	a, out := testApp(t, srv.URL, "google", "")

	code := a.upload(context.Background(), []string{syllabusDir(t)}, false, false)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "not signed in")
	assert.Contains(t, out.String(), "--session-cookie")
	assert.Contains(t, out.String(), srv.URL+"/auth/google")
	assert.Contains(t, out.String(), "Please login with Google first")
}

func TestUploadServerErrorExitsNonZero(t *testing.T) {
	srv := backend{uploadStatus: http.StatusBadRequest, uploadBody: `{"error":"Invalid PDF"}`}.start(t)
	a, out := testApp(t, srv.URL, "google", "session=ok")

	code := a.upload(context.Background(), []string{syllabusDir(t)}, false, false)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "Invalid PDF")
}

func TestUploadFileDownloadSavesCalendar(t *testing.T) {
	srv := backend{}.start(t)
	a, out := testApp(t, srv.URL, "apple", "")

	code := a.upload(context.Background(), []string{syllabusDir(t)}, true, false)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), response.MsgDownloadSucceeded)
	assert.Contains(t, out.String(), "0 upcoming event(s)")

	data, err := os.ReadFile(filepath.Join(a.conf.DownloadDir, response.DownloadFilename))
	require.NoError(t, err)
	assert.Equal(t, calendarBody, string(data))
}

func TestLoginSavesAcceptedCookie(t *testing.T) {
	srv := backend{}.start(t)
	a, out := testApp(t, srv.URL, "google", "session=ok")

	assert.Equal(t, 0, a.login(context.Background(), true))
	assert.Contains(t, out.String(), "session cookie saved")

	saved, err := config.Load(a.configPath)
	require.NoError(t, err)
	assert.Equal(t, "session=ok", saved.SessionCookie)
}

func TestLoginRejectsUnknownCookie(t *testing.T) {
	srv := backend{}.start(t)
	a, out := testApp(t, srv.URL, "google", "session=stale")

	assert.Equal(t, 1, a.login(context.Background(), true))
	assert.Contains(t, out.String(), "did not accept")
	_, err := os.Stat(a.configPath)
	assert.True(t, os.IsNotExist(err))
}
