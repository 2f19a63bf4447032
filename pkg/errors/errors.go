package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration represents missing or invalid settings
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeAcquisition represents failures while reading the job queue
	ErrorTypeAcquisition ErrorType = "acquisition"
	// ErrorTypeNetwork represents document download errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeParsing represents documents that yield no usable text
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeExtraction represents a malformed candidate inside a price line
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypePersistence represents store write errors
	ErrorTypePersistence ErrorType = "persistence"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeLifecycle represents failures writing a terminal job/run state
	ErrorTypeLifecycle ErrorType = "lifecycle"
	// ErrorTypeInterrupted represents a collection cut short by cancellation
	ErrorTypeInterrupted ErrorType = "interrupted"
)

// Stage keys used in a failed run's errors payload.
const (
	StageAcquire = "acquire"
	StageCollect = "collect"
	StagePersist = "persist"
	StageFinish  = "finish"
	StageWorker  = "worker"
)

// PipelineError is a fault raised somewhere between job acquisition and commit
type PipelineError struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Source != "" {
		prefix += " " + e.Source + ":"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsLocal reports whether the fault only affects one source or candidate
// and must not fail the whole job.
func (e *PipelineError) IsLocal() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeParsing, ErrorTypeExtraction:
		return true
	default:
		return false
	}
}

// Stage maps the error to the key under which a failed run records it.
func (e *PipelineError) Stage() string {
	switch e.Type {
	case ErrorTypeAcquisition:
		return StageAcquire
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeParsing, ErrorTypeExtraction, ErrorTypeInterrupted:
		return StageCollect
	case ErrorTypePersistence:
		return StagePersist
	case ErrorTypeLifecycle:
		return StageFinish
	default:
		return StageWorker
	}
}

// New creates a new PipelineError
func New(errType ErrorType, source, message string, err error) *PipelineError {
	return &PipelineError{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *PipelineError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewAcquisition creates a new queue acquisition error
func NewAcquisition(message string, err error) *PipelineError {
	return New(ErrorTypeAcquisition, "", message, err)
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *PipelineError {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *PipelineError {
	message := fmt.Sprintf("rate limited for %v", duration)
	return New(ErrorTypeRateLimit, source, message, nil)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *PipelineError {
	return New(ErrorTypeParsing, source, message, err)
}

// NewExtraction creates a new candidate extraction error
func NewExtraction(source, message string, err error) *PipelineError {
	return New(ErrorTypeExtraction, source, message, err)
}

// NewPersistence creates a new store error
func NewPersistence(message string, err error) *PipelineError {
	return New(ErrorTypePersistence, "", message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(message string, err error) *PipelineError {
	return New(ErrorTypePublisher, "", message, err)
}

// NewLifecycle creates a new terminal-state write error
func NewLifecycle(message string, err error) *PipelineError {
	return New(ErrorTypeLifecycle, "", message, err)
}

// NewInterrupted creates a new cancellation error
func NewInterrupted(message string, err error) *PipelineError {
	return New(ErrorTypeInterrupted, "", message, err)
}

// StageOf returns the stage key for any error, falling back to StageWorker.
func StageOf(err error) string {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Stage()
	}
	return StageWorker
}

// IsType reports whether err wraps a PipelineError of the given type.
func IsType(err error, errType ErrorType) bool {
	var pe *PipelineError
	return stderrors.As(err, &pe) && pe.Type == errType
}
