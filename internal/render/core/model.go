package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Format string

const (
	FormatPDF  Format = "Pdf"
	FormatPNG  Format = "Png"
	FormatJPEG Format = "Jpeg"
	FormatTIFF Format = "Tiff"
)

type ColorSpace string

const (
	ColorSpaceCMYK      ColorSpace = "Cmyk"
	ColorSpaceRGB       ColorSpace = "Rgb"
	ColorSpaceGrayscale ColorSpace = "Grayscale"
)

// JobRequest describes one render of a saved design. It is passed by value and never mutated.
type JobRequest struct {
	DesignID   string     `json:"designId" validate:"required"`
	OwnerID    string     `json:"ownerId" validate:"required"`
	OutputName string     `json:"outputName"`
	Format     Format     `json:"format" validate:"oneof=Pdf Png Jpeg Tiff"`
	ColorSpace ColorSpace `json:"colorSpace" validate:"oneof=Cmyk Rgb Grayscale"`
	DPI        int        `json:"dpi" validate:"gt=0"`
}

var validate = validator.New()

// Validate reports the first constraint the request violates.
func (r JobRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s is required", fe.Field())
		case "gt":
			return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
		case "oneof":
			return fmt.Errorf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
		}
		return fmt.Errorf("%s is invalid", fe.Field())
	}
	return err
}

// ResultName is the scenario output name; remote artifacts are named after it.
func (r JobRequest) ResultName() string {
	if r.OutputName != "" {
		return r.OutputName
	}
	return "resultfile_" + r.DesignID
}

type Job struct {
	ID      string
	Request JobRequest
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "Pending"
	JobStatusInProgress JobStatus = "InProgress"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusFailed     JobStatus = "Failed"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func ParseJobStatus(s string) (JobStatus, error) {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return JobStatus(s), nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

type ResultDescriptor struct {
	URL  string
	Name string
}

// StatusReport is one decoded answer to a status query.
type StatusReport struct {
	Status      JobStatus
	Outputs     []ResultDescriptor
	Description string
}

type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffExponential BackoffKind = "exponential"
)

const (
	DefaultPollAttempts = 20
	DefaultPollInterval = 3 * time.Second
)

// PollPolicy is the attempt budget of one polling session. MaxInterval caps
// exponential backoff and is ignored for constant backoff.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
	Backoff     BackoffKind
	MaxInterval time.Duration
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		MaxAttempts: DefaultPollAttempts,
		Interval:    DefaultPollInterval,
		Backoff:     BackoffConstant,
	}
}

func (p PollPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidPollPolicy)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidPollPolicy)
	}
	switch p.Backoff {
	case "", BackoffConstant, BackoffExponential:
	default:
		return fmt.Errorf("%w: unknown backoff %q", ErrInvalidPollPolicy, p.Backoff)
	}
	return nil
}

type PollVerdict string

const (
	PollCompleted PollVerdict = "Completed"
	PollFailed    PollVerdict = "Failed"
	PollTimedOut  PollVerdict = "TimedOut"
)

type PollResult struct {
	Verdict     PollVerdict
	Outputs     []ResultDescriptor
	Description string
	Attempts    int
}

// Artifact is one persisted output file.
type Artifact struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Size     int64  `json:"size"`
}

type RunState string

const (
	RunStateSubmitting RunState = "SUBMITTING"
	RunStatePolling    RunState = "POLLING"
	RunStateFetching   RunState = "FETCHING"
	RunStateSucceeded  RunState = "SUCCEEDED"
	RunStateFailed     RunState = "FAILED"
	RunStateTimedOut   RunState = "TIMED_OUT"
)

var runTransitions = map[RunState][]RunState{
	RunStateSubmitting: {RunStatePolling, RunStateFailed},
	RunStatePolling:    {RunStateFetching, RunStateFailed, RunStateTimedOut},
	RunStateFetching:   {RunStateSucceeded, RunStateFailed},
}

func (s RunState) IsTerminal() bool {
	return s == RunStateSucceeded || s == RunStateFailed || s == RunStateTimedOut
}

// CanTransition reports whether the orchestration state machine allows from -> to.
func CanTransition(from, to RunState) bool {
	for _, next := range runTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Run is the history record of one orchestration.
type Run struct {
	ID       uuid.UUID
	Request  JobRequest
	JobID    string
	State    RunState
	Attempts int
	Outcome  *Outcome

	StartedAt   time.Time
	CompletedAt *time.Time
}

type RunFilter struct {
	State  *RunState
	Limit  int
	Offset int
}
