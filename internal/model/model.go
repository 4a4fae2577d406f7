package model

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryMode selects how extracted events reach the user's calendar.
// The string value is what the backend expects in the "calendar" form field.
type DeliveryMode string

const (
	// DeliveryAccountLinked syncs events into a connected Google account.
	DeliveryAccountLinked DeliveryMode = "google"
	// DeliveryFileDownload returns a standalone .ics file.
	DeliveryFileDownload DeliveryMode = "apple"
)

// ParseDeliveryMode accepts the wire values and a few friendly aliases.
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google", "account":
		return DeliveryAccountLinked, nil
	case "apple", "file", "ics":
		return DeliveryFileDownload, nil
	default:
		return "", fmt.Errorf("unknown delivery mode %q", s)
	}
}

// Valid reports whether m is one of the two known modes.
func (m DeliveryMode) Valid() bool {
	return m == DeliveryAccountLinked || m == DeliveryFileDownload
}

// FileHandle is one selected input document.
type FileHandle struct {
	Name    string
	Content []byte
}

// SubmissionState tracks whether an upload is currently in flight.
type SubmissionState string

const (
	SubmissionIdle     SubmissionState = "idle"
	SubmissionInFlight SubmissionState = "in_flight"
)

// Stage is one step of server-side document handling, reported for display.
type Stage string

const (
	StagePDFExtraction  Stage = "pdf_extraction"
	StageAIProcessing   Stage = "ai_processing"
	StageCalendarUpdate Stage = "calendar_update"
	StageComplete       Stage = "complete"
	StageError          Stage = "error"
)

// ProcessingStage mirrors one entry of the backend's processing_results list.
type ProcessingStage struct {
	Filename string `json:"filename"`
	Stage    Stage  `json:"stage"`
	Status   string `json:"status"`
}

// OutcomeKind tags an Outcome message as success or failure.
type OutcomeKind string

const (
	OutcomeNone    OutcomeKind = ""
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the single user-facing result of a submission attempt.
type Outcome struct {
	Message string      `json:"message"`
	Kind    OutcomeKind `json:"kind"`
}

func Success(msg string) Outcome { return Outcome{Message: msg, Kind: OutcomeSuccess} }

func Failure(msg string) Outcome { return Outcome{Message: msg, Kind: OutcomeError} }

// IsError reports whether the outcome describes a failure.
func (o Outcome) IsError() bool { return o.Kind == OutcomeError }

// CalendarEvent is a single concrete event read back from a downloaded
// calendar file, normalized into the display timezone.
type CalendarEvent struct {
	UID     string
	Summary string

	AllDay bool

	Start time.Time
	End   time.Time
}
