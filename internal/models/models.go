// Package models defines the core data structures for catconsult.
//
// It includes the session and flow types shared by the filter, flow, and API
// modules, the consultation record persisted by the store, and the common
// JSON response envelope.
package models

import (
	"errors"
	"time"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum accepted length for a chat message
	// before the spam detector rejects it.
	MaxMessageLength = 5000
	// MaxRepeatedRunLength defines the longest accepted run of a single
	// repeated character; longer runs are treated as spam.
	MaxRepeatedRunLength = 20
	// MaxURLCount defines how many URL tokens a message may carry.
	MaxURLCount = 3
	// MaxEmailCount defines how many email addresses a message may carry.
	MaxEmailCount = 2
	// ShortMessageExemptLength is the length at or below which the topic gate
	// skips the allow-keyword requirement.
	ShortMessageExemptLength = 10
)

// Error variables for better error handling and testability
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidOption     = errors.New("invalid option")
	ErrMalformedFormData = errors.New("malformed form data")
	ErrMissingFields     = errors.New("required fields missing")
	ErrEmptySessionID    = errors.New("session_id is required")
	ErrEmptyFlowStep     = errors.New("flow step id cannot be empty")
	ErrUnknownNextStep   = errors.New("option references unknown next step")
	ErrDuplicateStep     = errors.New("duplicate flow step id")
	ErrNoGreetingStep    = errors.New("flow has no greeting step")
)

// ConsultationTypeDetailedQuote is the greeting option that unlocks the
// video-generation enhancement on form submission.
const ConsultationTypeDetailedQuote = "detailed_quote"

// FilterVerdict is the result of running a message through the filter
// pipeline. SanitizedMessage is always populated; Reason only on block.
type FilterVerdict struct {
	Allowed          bool   `json:"allowed"`
	SanitizedMessage string `json:"message"`
	Reason           string `json:"reason,omitempty"`
	IsSpam           bool   `json:"is_spam"`
}

// ConsultationStatus represents the lifecycle state of a saved consultation.
type ConsultationStatus string

const (
	ConsultationStatusPending    ConsultationStatus = "pending"
	ConsultationStatusProcessing ConsultationStatus = "processing"
	ConsultationStatusQuoted     ConsultationStatus = "quoted"
	ConsultationStatusCompleted  ConsultationStatus = "completed"
)

// IsValidConsultationStatus checks if the given status is supported.
func IsValidConsultationStatus(s ConsultationStatus) bool {
	switch s {
	case ConsultationStatusPending, ConsultationStatusProcessing, ConsultationStatusQuoted, ConsultationStatusCompleted:
		return true
	default:
		return false
	}
}

// CatInfo describes one cat collected during intake.
type CatInfo struct {
	Name             string  `json:"name,omitempty"`
	Age              string  `json:"age,omitempty"`
	Weight           float64 `json:"weight,omitempty"`
	Breed            string  `json:"breed,omitempty"`
	Personality      string  `json:"personality,omitempty"`
	HealthIssues     string  `json:"health_issues,omitempty"`
	ExpectedActivity string  `json:"expected_activity,omitempty"`
	CatPhoto         string  `json:"cat_photo,omitempty"`
}

// ConsultationRecord is the durable record created when a completed intake is
// submitted. Installation and cat details are flattened from the collected
// form data.
type ConsultationRecord struct {
	ID                   string             `json:"id"`
	SessionID            string             `json:"session_id"`
	ConsultationType     string             `json:"consultation_type,omitempty"`
	InstallationRegion   string             `json:"installation_region"`
	InstallationLocation string             `json:"installation_location"`
	CatCount             int                `json:"cat_count"`
	Width                float64            `json:"width"`
	Height               float64            `json:"height"`
	CeilingHeight        float64            `json:"ceiling_height,omitempty"`
	ProductColor         string             `json:"product_color,omitempty"`
	Cats                 []CatInfo          `json:"cats,omitempty"`
	ContactName          string             `json:"contact_name,omitempty"`
	ContactPhone         string             `json:"contact_phone,omitempty"`
	ContactEmail         string             `json:"contact_email,omitempty"`
	Status               ConsultationStatus `json:"status"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// Validate checks the minimum shape required to persist a consultation.
func (c *ConsultationRecord) Validate() error {
	if c.SessionID == "" {
		return ErrEmptySessionID
	}
	if c.InstallationRegion == "" {
		return errors.New("installation_region is required")
	}
	if c.CatCount <= 0 {
		return errors.New("cat_count must be positive")
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusRejected indicates the filter pipeline rejected the message.
	APIStatusRejected APIStatus = "rejected"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Rejected creates a filter-rejection API response with the refusal message.
func Rejected(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusRejected).
		WithMessage(message).
		Build()
}
