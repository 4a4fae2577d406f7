package response

import (
	"encoding/json"
	"errors"
	"fmt"

	appLog "syllasync/internal/log"
	"syllasync/internal/model"
	"syllasync/internal/upload"
)

// Fixed user-facing texts.
const (
	DownloadFilename = "calendar-events.ics"

	MsgUploadFailed       = "Upload failed"
	MsgSuccessFallback    = "Success!"
	MsgCalendarFileFailed = "Failed to generate calendar file"
	MsgDownloadSucceeded  = "Calendar file downloaded successfully!"
)

// Failure is a failure reported by the backend (or a fixed fallback for
// one). Its message is shown to the user verbatim, unlike transport errors.
type Failure struct {
	Message string
}

func (f *Failure) Error() string { return f.Message }

func fail(msg string) error { return &Failure{Message: msg} }

// Saver persists a downloaded calendar blob under a fixed name and returns
// the final location.
type Saver interface {
	Save(name string, blob []byte) (string, error)
}

// Result is the interpreted, successful outcome of an upload.
type Result struct {
	Message string
	// Stages carries processing_results reported by the backend, if any.
	Stages []model.ProcessingStage
	// SavedPath is set in file-download mode.
	SavedPath string
}

// accountReply is the JSON shape of account-linked responses. message and
// error stay raw so that a non-string value reads as absent instead of
// failing the whole decode.
type accountReply struct {
	Message json.RawMessage         `json:"message"`
	Error   json.RawMessage         `json:"error"`
	Stages  []model.ProcessingStage `json:"processing_results"`
}

// text returns raw as a string, or "" when it is missing or not a string.
func text(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// errorReply is the JSON error shape of file-download failures.
type errorReply struct {
	Error json.RawMessage `json:"error"`
}

// Interpreter turns raw upload responses into results. The branch is chosen
// by delivery mode before anything is parsed; the content type is never
// consulted.
type Interpreter struct {
	saver Saver
}

// NewInterpreter creates an Interpreter that hands calendar files to saver.
func NewInterpreter(saver Saver) *Interpreter {
	return &Interpreter{saver: saver}
}

// Interpret decodes resp according to mode. A returned error describes the
// failure to show to the user.
func (i *Interpreter) Interpret(mode model.DeliveryMode, resp *upload.Response) (Result, error) {
	if resp == nil {
		return Result{}, errors.New("empty response")
	}

	switch mode {
	case model.DeliveryAccountLinked:
		return i.interpretAccount(resp)
	case model.DeliveryFileDownload:
		return i.interpretFile(resp)
	default:
		return Result{}, fmt.Errorf("unknown delivery mode %q", mode)
	}
}

func (i *Interpreter) interpretAccount(resp *upload.Response) (Result, error) {
	var reply accountReply
	if err := json.Unmarshal(resp.Body, &reply); err != nil {
		if !resp.OK() {
			return Result{}, fail(MsgUploadFailed)
		}
		return Result{}, fmt.Errorf("invalid JSON response: %w", err)
	}

	if !resp.OK() {
		if msg := text(reply.Error); msg != "" {
			return Result{Stages: reply.Stages}, fail(msg)
		}
		return Result{Stages: reply.Stages}, fail(MsgUploadFailed)
	}

	msg := MsgSuccessFallback
	if m := text(reply.Message); m != "" {
		msg = m
	}
	return Result{Message: msg, Stages: reply.Stages}, nil
}

func (i *Interpreter) interpretFile(resp *upload.Response) (Result, error) {
	if !resp.OK() {
		var reply errorReply
		if err := json.Unmarshal(resp.Body, &reply); err != nil {
			appLog.Debug("calendar file error body is not JSON", "status", resp.StatusCode)
			return Result{}, fail(MsgCalendarFileFailed)
		}
		if msg := text(reply.Error); msg != "" {
			return Result{}, fail(msg)
		}
		return Result{}, fail(MsgUploadFailed)
	}

	if i.saver == nil {
		return Result{}, errors.New("no destination configured for calendar file")
	}

	// The body is saved whatever its declared type.
	appLog.Debug("calendar file received", "content_type", resp.ContentType, "bytes", len(resp.Body))

	path, err := i.saver.Save(DownloadFilename, resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{Message: MsgDownloadSucceeded, SavedPath: path}, nil
}
