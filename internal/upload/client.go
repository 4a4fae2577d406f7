package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	appLog "syllasync/internal/log"
	"syllasync/internal/model"
	"syllasync/internal/session"
)

const (
	// Path is the upload endpoint relative to the backend base URL.
	Path = "/upload"

	fileField     = "file"
	calendarField = "calendar"
)

// Response is the raw, uninterpreted backend reply to an upload.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client posts syllabus documents to the backend.
type Client struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
}

// NewClient creates an upload client. timeout of zero means the request is
// bounded only by ctx.
func NewClient(httpClient *http.Client, baseURL string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// NewHTTPClient returns an *http.Client with a cookie jar so that session
// cookies set by the backend are sent back on later requests. If
// sessionCookie ("name=value") is non-empty it is seeded into the jar for
// baseURL.
func NewHTTPClient(baseURL, sessionCookie string) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if sessionCookie != "" {
		if err := session.SeedCookie(jar, baseURL, sessionCookie); err != nil {
			return nil, err
		}
	}

	return &http.Client{Jar: jar}, nil
}

// Upload sends every file as a repeated "file" part plus the delivery mode
// as the "calendar" field, in a single request. The whole response body is
// read and returned; interpretation is left to the caller.
func (c *Client) Upload(ctx context.Context, files []model.FileHandle, mode model.DeliveryMode) (*Response, error) {
	body, contentType, err := buildMultipart(files, mode)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	appLog.Info("upload start", "request_id", requestID, "mode", string(mode), "files", len(files))

	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("upload transport error", err, "request_id", requestID)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}

	appLog.Info("upload response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"bytes", len(data),
	)

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// buildMultipart encodes the submission body.
func buildMultipart(files []model.FileHandle, mode model.DeliveryMode) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range files {
		part, err := w.CreateFormFile(fileField, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %q: %w", f.Name, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %q: %w", f.Name, err)
		}
	}
	if err := w.WriteField(calendarField, string(mode)); err != nil {
		return nil, "", fmt.Errorf("write calendar field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}
