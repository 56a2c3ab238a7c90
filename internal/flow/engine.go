package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/playcat/catconsult/internal/genai"
	"github.com/playcat/catconsult/internal/models"
)

// User-facing messages produced by the engine. The chat surface speaks
// Korean; these are the canonical strings the frontend relies on.
const (
	optionSelectedMessage = "옵션이 선택되었습니다."
	formAcceptedMessage   = "상담 정보가 접수되었습니다. 분석 중입니다..."

	// MissingFieldsMessage accompanies a MissingFields validation response.
	MissingFieldsMessage = "필수 정보가 누락되었습니다."

	nextActionGenerateQuote = "generate_quote"
)

// Collaborator timeouts. Video synthesis is acknowledged slow; everything
// else is bounded tightly so an abandoned session cannot hang a worker.
const (
	DefaultChatTimeout  = 2 * time.Minute
	DefaultVideoTimeout = 20 * time.Minute
)

// VideoRequest carries the generated prompts for one media job.
type VideoRequest struct {
	ImagePrompt   string
	VideoPositive string
	VideoNegative string
	AudioPositive string
	AudioNegative string
	Duration      float64
}

// VideoJob is the media pipeline's handle for a completed generation.
type VideoJob struct {
	ImageURL string
	VideoURL string
	JobID    string
}

// MediaGenerator is the engine's view of the media pipeline. It may fail;
// the engine downgrades failures to an error sub-result.
type MediaGenerator interface {
	GenerateCatVideo(ctx context.Context, req VideoRequest) (*VideoJob, error)
}

// EngineOpts holds optional collaborators and tuning for the engine.
type EngineOpts struct {
	Analyzer     genai.Analyzer
	Media        MediaGenerator
	ChatTimeout  time.Duration
	VideoTimeout time.Duration
}

// EngineOption configures the conversation engine.
type EngineOption func(*EngineOpts)

// WithAnalyzer enables LLM-backed analysis of submitted consultation data.
// Without it, form submissions fall back to a static acknowledgement.
func WithAnalyzer(a genai.Analyzer) EngineOption {
	return func(o *EngineOpts) { o.Analyzer = a }
}

// WithMediaGenerator enables video generation for detailed-quote sessions.
func WithMediaGenerator(m MediaGenerator) EngineOption {
	return func(o *EngineOpts) { o.Media = m }
}

// WithChatTimeout bounds LLM chat and analysis calls.
func WithChatTimeout(d time.Duration) EngineOption {
	return func(o *EngineOpts) { o.ChatTimeout = d }
}

// WithVideoTimeout bounds media generation calls.
func WithVideoTimeout(d time.Duration) EngineOption {
	return func(o *EngineOpts) { o.VideoTimeout = d }
}

// Engine orchestrates one conversation turn: it dispatches by current step,
// mutates the session through the store, and calls out to the LLM and media
// collaborators outside the session lock.
type Engine struct {
	flow         *Flow
	sessions     *SessionStore
	llm          genai.ClientInterface
	analyzer     genai.Analyzer
	media        MediaGenerator
	chatTimeout  time.Duration
	videoTimeout time.Duration
}

// NewEngine creates a conversation engine. The analyzer and media generator
// are optional capabilities resolved here, once, rather than per call.
func NewEngine(f *Flow, sessions *SessionStore, llm genai.ClientInterface, opts ...EngineOption) *Engine {
	cfg := EngineOpts{ChatTimeout: DefaultChatTimeout, VideoTimeout: DefaultVideoTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		flow:         f,
		sessions:     sessions,
		llm:          llm,
		analyzer:     cfg.Analyzer,
		media:        cfg.Media,
		chatTimeout:  cfg.ChatTimeout,
		videoTimeout: cfg.VideoTimeout,
	}
}

// StartSession creates a fresh session at the greeting step and returns its
// rendered message.
func (e *Engine) StartSession() models.StartSessionResponse {
	session := e.sessions.Start(e.flow.GreetingStepID())
	step, _ := e.flow.Step(session.CurrentStepID)

	slog.Info("Engine.StartSession: session started", "sessionID", session.SessionID)
	return models.StartSessionResponse{
		SessionID: session.SessionID,
		Step:      step.ID,
		Message:   step.Message,
		Options:   step.Options,
	}
}

// ProcessMessage handles one inbound turn. The message is appended to
// history unconditionally, then dispatched by priority: option selection,
// form submission, free-form chat.
//
// A models.ErrMissingFields error is returned together with a response
// carrying the missing field ids; collected data is already merged, so the
// caller only needs to resubmit the gaps.
func (e *Engine) ProcessMessage(ctx context.Context, sessionID, message, selectedOption string) (*models.StepResponse, error) {
	snapshot, err := e.sessions.Mutate(sessionID, func(s *models.Session) error {
		s.History = append(s.History, models.ChatMessage{
			Role:      models.RoleUser,
			Content:   message,
			Timestamp: time.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resp *models.StepResponse
	var procErr error
	switch {
	case selectedOption != "":
		resp, procErr = e.handleOptionSelection(sessionID, selectedOption)
	case e.isFormStep(snapshot.CurrentStepID):
		resp, procErr = e.handleFormSubmission(ctx, sessionID, message)
	default:
		resp = e.handleChat(ctx, snapshot, message)
	}
	if procErr != nil {
		return resp, procErr
	}

	if resp.Message != "" {
		// Session may have been cleared while a collaborator call was in
		// flight; losing the assistant turn is acceptable then.
		if _, err := e.sessions.Mutate(sessionID, func(s *models.Session) error {
			s.History = append(s.History, models.ChatMessage{
				Role:      models.RoleAssistant,
				Content:   resp.Message,
				Timestamp: time.Now(),
			})
			return nil
		}); err != nil {
			slog.Warn("Engine.ProcessMessage: failed to record assistant turn", "sessionID", sessionID, "error", err)
		}
	}
	return resp, nil
}

// GetSession returns a snapshot of the session state.
func (e *Engine) GetSession(sessionID string) (models.Session, error) {
	session, ok := e.sessions.Get(sessionID)
	if !ok {
		return models.Session{}, models.ErrSessionNotFound
	}
	return session, nil
}

// ClearSession deletes the session. Idempotent.
func (e *Engine) ClearSession(sessionID string) {
	e.sessions.Clear(sessionID)
	slog.Debug("Engine.ClearSession: session cleared", "sessionID", sessionID)
}

func (e *Engine) isFormStep(stepID string) bool {
	step, ok := e.flow.Step(stepID)
	return ok && step.IsForm()
}

// handleOptionSelection validates the option against the current step and
// applies the transition. Selecting at the greeting step fixes the session's
// consultation type.
func (e *Engine) handleOptionSelection(sessionID, optionID string) (*models.StepResponse, error) {
	var nextStep *models.FlowStep
	_, err := e.sessions.Mutate(sessionID, func(s *models.Session) error {
		step, ok := e.flow.Step(s.CurrentStepID)
		if !ok {
			return models.ErrInvalidOption
		}
		opt, ok := step.FindOption(optionID)
		if !ok {
			return models.ErrInvalidOption
		}

		if s.CurrentStepID == e.flow.GreetingStepID() {
			s.ConsultationType = optionID
		}
		if opt.Next != "" {
			s.CurrentStepID = opt.Next
			nextStep, _ = e.flow.Step(opt.Next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if nextStep != nil {
		slog.Debug("Engine.handleOptionSelection: step transition", "sessionID", sessionID, "option", optionID, "next", nextStep.ID)
		return renderStep(nextStep), nil
	}
	return &models.StepResponse{Message: optionSelectedMessage}, nil
}

// handleFormSubmission merges the submitted fields into collected data,
// validates required fields, and on success runs analysis plus the optional
// video enhancement. The merge happens before validation so a resubmission
// only needs to supply the missing pieces.
func (e *Engine) handleFormSubmission(ctx context.Context, sessionID, payload string) (*models.StepResponse, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, models.ErrMalformedFormData
	}

	var missing []string
	snapshot, err := e.sessions.Mutate(sessionID, func(s *models.Session) error {
		for k, v := range data {
			s.CollectedData[k] = v
		}
		if step, ok := e.flow.Step(s.CurrentStepID); ok {
			missing = missingRequiredFields(step, s.CollectedData)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		slog.Debug("Engine.handleFormSubmission: required fields missing", "sessionID", sessionID, "missing", missing)
		return &models.StepResponse{Step: snapshot.CurrentStepID, MissingFields: missing}, models.ErrMissingFields
	}

	resp := &models.StepResponse{
		Message:    formAcceptedMessage,
		Analysis:   e.analyze(ctx, snapshot.CollectedData),
		NextAction: nextActionGenerateQuote,
	}
	if snapshot.ConsultationType == models.ConsultationTypeDetailedQuote {
		resp.VideoGeneration = e.generateCatVideo(ctx, snapshot.CollectedData)
	}
	return resp, nil
}

// analyze runs the structured analysis when the capability is present and
// falls back to a static acknowledgement otherwise. Analysis failure is not
// a form-submission failure.
func (e *Engine) analyze(ctx context.Context, data map[string]interface{}) *models.ConsultationAnalysis {
	if e.analyzer != nil {
		ctx, cancel := context.WithTimeout(ctx, e.chatTimeout)
		defer cancel()

		analysis, err := e.analyzer.AnalyzeConsultation(ctx, data)
		if err == nil {
			return analysis
		}
		slog.Error("Engine.analyze: analysis failed, using fallback", "error", err)
	}
	return &models.ConsultationAnalysis{
		Summary:         "상담 데이터가 수집되었습니다.",
		Recommendations: []string{"전문 상담사가 곧 연락드리겠습니다."},
	}
}

// handleChat delegates to the LLM with the history recorded before this
// turn's user message, which the client replays itself.
func (e *Engine) handleChat(ctx context.Context, snapshot models.Session, message string) *models.StepResponse {
	ctx, cancel := context.WithTimeout(ctx, e.chatTimeout)
	defer cancel()

	history := snapshot.History
	if n := len(history); n > 0 && history[n-1].Role == models.RoleUser {
		history = history[:n-1]
	}
	reply := e.llm.Chat(ctx, message, history)
	return &models.StepResponse{Step: snapshot.CurrentStepID, Message: reply}
}

// missingRequiredFields returns the ids of required fields absent or empty
// in the collected data, in the step's declared order.
func missingRequiredFields(step *models.FlowStep, collected map[string]interface{}) []string {
	var missing []string
	for _, field := range step.RequiredFields {
		if !field.Required() {
			continue
		}
		value, ok := collected[field.ID]
		if !ok || isEmptyValue(value) {
			missing = append(missing, field.ID)
		}
	}
	return missing
}

// isEmptyValue mirrors the falsy semantics form clients rely on: empty
// strings, zero numbers, false, and empty collections all count as missing.
func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	case bool:
		return !val
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}
