package uploader

import (
	"context"
	"errors"
	"sync"

	appLog "syllasync/internal/log"
	"syllasync/internal/model"
	"syllasync/internal/response"
	"syllasync/internal/upload"
)

// Fixed precondition messages.
const (
	MsgLoginRequired = "Please login with Google first"
	MsgNoFiles       = "Please select at least one file"
	MsgUnknownError  = "Unknown error"
)

// ErrSubmissionInFlight is returned when a mutating call is made while a
// submission is in flight.
var ErrSubmissionInFlight = errors.New("submission already in flight")

// View is what the client should offer the user next.
type View string

const (
	// ViewSignIn asks the user to authorize the account-linked provider.
	ViewSignIn View = "sign_in"
	// ViewUploadForm offers file selection and submission.
	ViewUploadForm View = "upload_form"
)

// AuthSource reports the session authentication state. It must read false
// until the state is known.
type AuthSource interface {
	Authenticated() bool
	LoginURL() string
}

// Uploader dispatches a single multipart submission.
type Uploader interface {
	Upload(ctx context.Context, files []model.FileHandle, mode model.DeliveryMode) (*upload.Response, error)
}

// Interpreter decodes a raw upload response for the given mode.
type Interpreter interface {
	Interpret(mode model.DeliveryMode, resp *upload.Response) (response.Result, error)
}

// Snapshot is a read-only copy of the controller state.
type Snapshot struct {
	Files         []string                `json:"files"`
	Mode          model.DeliveryMode      `json:"mode"`
	Authenticated bool                    `json:"authenticated"`
	State         model.SubmissionState   `json:"state"`
	Outcome       model.Outcome           `json:"outcome"`
	Stages        []model.ProcessingStage `json:"stages,omitempty"`
	SavedPath     string                  `json:"saved_path,omitempty"`
	View          View                    `json:"view"`
}

// Controller owns the upload workflow state: the selected files, the
// delivery mode, the in-flight flag and the last outcome. Authentication
// state is read from auth and never written here; SetAuth replaces the
// source as a whole.
type Controller struct {
	auth        AuthSource
	uploader    Uploader
	interpreter Interpreter

	mu        sync.Mutex
	files     []model.FileHandle
	mode      model.DeliveryMode
	state     model.SubmissionState
	outcome   model.Outcome
	stages    []model.ProcessingStage
	savedPath string
}

// New creates an idle controller with the given default delivery mode.
func New(auth AuthSource, uploader Uploader, interpreter Interpreter, mode model.DeliveryMode) *Controller {
	if !mode.Valid() {
		mode = model.DeliveryAccountLinked
	}
	return &Controller{
		auth:        auth,
		uploader:    uploader,
		interpreter: interpreter,
		mode:        mode,
		state:       model.SubmissionIdle,
	}
}

// Submit validates preconditions, uploads the selected files as one request
// and records the outcome. The returned error is non-nil only when another
// submission is already in flight; every other failure is reported through
// the Outcome.
func (c *Controller) Submit(ctx context.Context) (model.Outcome, error) {
	c.mu.Lock()
	if c.state == model.SubmissionInFlight {
		c.mu.Unlock()
		return model.Outcome{}, ErrSubmissionInFlight
	}

	mode := c.mode
	if mode == model.DeliveryAccountLinked && !c.authenticated() {
		c.outcome = model.Failure(MsgLoginRequired)
		out := c.outcome
		c.mu.Unlock()
		return out, nil
	}
	if len(c.files) == 0 {
		c.outcome = model.Failure(MsgNoFiles)
		out := c.outcome
		c.mu.Unlock()
		return out, nil
	}

	files := append([]model.FileHandle(nil), c.files...)
	c.state = model.SubmissionInFlight
	c.outcome = model.Outcome{}
	c.stages = nil
	c.savedPath = ""
	c.mu.Unlock()

	// Runs on every exit path, including a panic in a collaborator.
	defer c.settle()

	out, res := c.dispatch(ctx, files, mode)

	c.mu.Lock()
	c.outcome = out
	c.stages = res.Stages
	c.savedPath = res.SavedPath
	c.mu.Unlock()

	return out, nil
}

func (c *Controller) dispatch(ctx context.Context, files []model.FileHandle, mode model.DeliveryMode) (model.Outcome, response.Result) {
	resp, err := c.uploader.Upload(ctx, files, mode)
	if err != nil {
		return errorOutcome(err), response.Result{}
	}

	res, err := c.interpreter.Interpret(mode, resp)
	if err != nil {
		var f *response.Failure
		if errors.As(err, &f) {
			appLog.Info("upload rejected by backend", "status", resp.StatusCode, "message", f.Message)
			return model.Failure(f.Message), res
		}
		appLog.Error("upload response could not be handled", err, "status", resp.StatusCode)
		return errorOutcome(err), res
	}

	appLog.Info("upload succeeded", "mode", string(mode), "files", len(files), "message", res.Message)
	return model.Success(res.Message), res
}

// settle returns the controller to idle.
func (c *Controller) settle() {
	c.mu.Lock()
	c.state = model.SubmissionIdle
	c.mu.Unlock()
}

func errorOutcome(err error) model.Outcome {
	msg := MsgUnknownError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return model.Failure("Error: " + msg)
}

func (c *Controller) authenticated() bool {
	return c.auth != nil && c.auth.Authenticated()
}

// State returns the current submission state.
func (c *Controller) State() model.SubmissionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View reports whether the sign-in prompt or the upload form applies.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Controller) view() View {
	if c.mode == model.DeliveryAccountLinked && !c.authenticated() {
		return ViewSignIn
	}
	return ViewUploadForm
}

// SetAuth swaps in a freshly resolved authentication source, the
// equivalent of reloading the page after signing in. It is rejected while a
// submission is in flight.
func (c *Controller) SetAuth(auth AuthSource) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.SubmissionInFlight {
		return ErrSubmissionInFlight
	}
	c.auth = auth
	return nil
}

// LoginURL returns the provider sign-in redirect target.
func (c *Controller) LoginURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth == nil {
		return ""
	}
	return c.auth.LoginURL()
}

// Snapshot returns a copy of the state for display.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.files))
	for _, f := range c.files {
		names = append(names, f.Name)
	}
	return Snapshot{
		Files:         names,
		Mode:          c.mode,
		Authenticated: c.authenticated(),
		State:         c.state,
		Outcome:       c.outcome,
		Stages:        append([]model.ProcessingStage(nil), c.stages...),
		SavedPath:     c.savedPath,
		View:          c.view(),
	}
}
