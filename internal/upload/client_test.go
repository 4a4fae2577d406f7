package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syllasync/internal/model"
)

func TestUploadSendsRepeatedFilePartsAndCalendarField(t *testing.T) {
	var (
		gotNames    []string
		gotContents []string
		gotCalendar string
		gotCookie   string
		gotReqID    string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, Path, r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		for _, fh := range r.MultipartForm.File["file"] {
			gotNames = append(gotNames, fh.Filename)
			f, err := fh.Open()
			if !assert.NoError(t, err) {
				return
			}
			data, _ := io.ReadAll(f)
			f.Close()
			gotContents = append(gotContents, string(data))
		}
		gotCalendar = r.FormValue("calendar")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		gotReqID = r.Header.Get("X-Request-ID")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	httpClient, err := NewHTTPClient(srv.URL, "session=abc")
	require.NoError(t, err)
	c := NewClient(httpClient, srv.URL+"/", 0)

	files := []model.FileHandle{
		{Name: "cs101.pdf", Content: []byte("one")},
		{Name: "math200.pdf", Content: []byte("two")},
	}
	resp, err := c.Upload(context.Background(), files, model.DeliveryAccountLinked)
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, `{"message":"ok"}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Equal(t, []string{"cs101.pdf", "math200.pdf"}, gotNames)
	assert.Equal(t, []string{"one", "two"}, gotContents)
	assert.Equal(t, "google", gotCalendar)
	assert.Equal(t, "abc", gotCookie)
	assert.NotEmpty(t, gotReqID)
}

func TestUploadReturnsNonSuccessStatusWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, 0)
	resp, err := c.Upload(context.Background(), []model.FileHandle{{Name: "a.pdf"}}, model.DeliveryFileDownload)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.Client(), srv.URL, 50*time.Millisecond)
	_, err := c.Upload(context.Background(), []model.FileHandle{{Name: "a.pdf"}}, model.DeliveryAccountLinked)
	assert.Error(t, err)
}

func TestNewHTTPClientRejectsMalformedCookie(t *testing.T) {
	_, err := NewHTTPClient("http://localhost:5002", "justavalue")
	assert.Error(t, err)
}
