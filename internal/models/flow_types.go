// Package models defines flow and session types for the consultation engine.
package models

import "time"

// StepOption represents a user-selectable branch on a flow step.
type StepOption struct {
	ID    string `json:"id"`             // option identifier sent back by the client
	Label string `json:"label"`          // display text
	Next  string `json:"next,omitempty"` // id of the step to transition to; empty means terminal
}

// FieldDescriptor describes a single form field and its validation rule.
// Rules are pipe-separated; a rule beginning with "required" makes the field
// mandatory (e.g. "required", "required|numeric").
type FieldDescriptor struct {
	ID         string `json:"id"`
	Validation string `json:"validation"`
}

// Required reports whether this field must be present and non-empty.
func (f FieldDescriptor) Required() bool {
	return len(f.Validation) >= 8 && f.Validation[:8] == "required"
}

// FlowStep is one node of the static consultation script. Steps are loaded
// once at startup and never mutated afterwards.
type FlowStep struct {
	ID               string            `json:"id"`
	Message          string            `json:"message"`
	Options          []StepOption      `json:"options,omitempty"`
	RequiredFields   []FieldDescriptor `json:"required_fields,omitempty"`
	CatInfoFields    []FieldDescriptor `json:"cat_info_fields,omitempty"`
	AdditionalFields []FieldDescriptor `json:"additional_fields,omitempty"`
}

// IsForm reports whether the step expects a structured form submission
// rather than free text.
func (s *FlowStep) IsForm() bool {
	return len(s.RequiredFields) > 0
}

// FindOption looks up an option by id within the step.
func (s *FlowStep) FindOption(optionID string) (StepOption, bool) {
	for _, opt := range s.Options {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return StepOption{}, false
}

// ChatMessage is a single turn in the conversation history.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session holds one user's ongoing conversation. It is owned exclusively by
// the session store; callers receive copies.
type Session struct {
	SessionID        string                 `json:"session_id"`
	CurrentStepID    string                 `json:"current_step"`
	History          []ChatMessage          `json:"conversation_history"`
	CollectedData    map[string]interface{} `json:"collected_data"`
	ConsultationType string                 `json:"consultation_type,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	LastActiveAt     time.Time              `json:"last_active_at"`
}

// VideoGenerationStatus reports the outcome of the optional video step.
type VideoGenerationStatus string

const (
	VideoStatusSuccess VideoGenerationStatus = "success"
	VideoStatusSkipped VideoGenerationStatus = "skipped"
	VideoStatusError   VideoGenerationStatus = "error"
)

// VideoGenerationResult carries media pipeline output attached to a form
// submission response. Failures surface here instead of failing the request.
type VideoGenerationResult struct {
	Status   VideoGenerationStatus `json:"status"`
	CatIndex int                   `json:"cat_index,omitempty"`
	ImageURL string                `json:"image_url,omitempty"`
	VideoURL string                `json:"video_url,omitempty"`
	JobID    string                `json:"job_id,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// StepResponse is the engine's answer for one turn: the rendered step or
// chat reply, plus any analysis or media results produced along the way.
type StepResponse struct {
	Step             string                 `json:"step,omitempty"`
	Message          string                 `json:"message,omitempty"`
	Options          []StepOption           `json:"options,omitempty"`
	RequiredFields   []FieldDescriptor      `json:"required_fields,omitempty"`
	CatInfoFields    []FieldDescriptor      `json:"cat_info_fields,omitempty"`
	AdditionalFields []FieldDescriptor      `json:"additional_fields,omitempty"`
	MissingFields    []string               `json:"missing_fields,omitempty"`
	Analysis         interface{}            `json:"analysis,omitempty"`
	NextAction       string                 `json:"next_action,omitempty"`
	VideoGeneration  *VideoGenerationResult `json:"video_generation,omitempty"`
}

// StartSessionResponse is returned when a new chat session begins.
type StartSessionResponse struct {
	SessionID string       `json:"session_id"`
	Step      string       `json:"step"`
	Message   string       `json:"message"`
	Options   []StepOption `json:"options,omitempty"`
}

// ChatMessageRequest is the payload for POST /api/chat/message.
type ChatMessageRequest struct {
	SessionID      string `json:"session_id"`
	Message        string `json:"message"`
	SelectedOption string `json:"selected_option,omitempty"`
	Language       string `json:"language,omitempty"`
}

// Validate validates a ChatMessageRequest.
func (r *ChatMessageRequest) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	return nil
}

// ConsultationAnalysis is the structured result of the LLM analysis over
// collected consultation data. Summary/Recommendations are always present;
// Raw preserves the full model output when it parses as JSON.
type ConsultationAnalysis struct {
	Summary         string                 `json:"summary"`
	Recommendations []string               `json:"recommendations,omitempty"`
	Raw             map[string]interface{} `json:"raw,omitempty"`
}
