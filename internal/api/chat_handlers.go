package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playcat/catconsult/internal/filter"
	"github.com/playcat/catconsult/internal/flow"
	"github.com/playcat/catconsult/internal/models"
	"github.com/playcat/catconsult/internal/notify"
)

// User-facing error strings for the chat surface.
const (
	sessionNotFoundMessage  = "세션을 찾을 수 없습니다."
	invalidOptionMessage    = "유효하지 않은 옵션입니다."
	malformedDataMessage    = "잘못된 데이터 형식입니다."
	tooManyRequestsMessage  = "Too many simultaneous requests. Please wait."
	internalErrorMessage    = "일시적인 오류가 발생했습니다."
	sessionClearedMessage   = "Session cleared"
	invalidRequestBodyError = "invalid request body"
)

// handleChatStart creates a new session and returns the greeting step.
func (s *Server) handleChatStart(w http.ResponseWriter, r *http.Request) {
	started := s.engine.StartSession()
	writeJSONResponse(w, http.StatusOK, models.Success(started))
}

// handleChatMessage runs one conversation turn: duplicate-request guard,
// filter pipeline, engine dispatch, then a fire-and-forget operator alert.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(invalidRequestBodyError))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if !s.guard.begin(req.SessionID) {
		slog.Warn("Server.handleChatMessage: duplicate request rejected", "sessionID", req.SessionID)
		writeJSONResponse(w, http.StatusTooManyRequests, models.Error(tooManyRequestsMessage))
		return
	}
	defer s.guard.end(req.SessionID)

	verdict := filter.FilterMessage(req.Message, req.SelectedOption != "")
	if !verdict.Allowed {
		// A filter rejection is a normal conversational outcome, not an
		// HTTP error; session state is untouched.
		writeJSONResponse(w, http.StatusOK, models.Rejected(verdict.Reason))
		return
	}

	resp, err := s.engine.ProcessMessage(r.Context(), req.SessionID, verdict.SanitizedMessage, req.SelectedOption)
	if err != nil {
		s.writeEngineError(w, req.SessionID, resp, err)
		return
	}

	notify.SendConsultationAlertAsync(s.notifier, req.SessionID, verdict.SanitizedMessage, resp.Message,
		notify.AlertContext{Intent: "chat", ProductName: "-"})

	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// writeEngineError maps engine errors onto user-facing responses.
func (s *Server) writeEngineError(w http.ResponseWriter, sessionID string, resp *models.StepResponse, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error(sessionNotFoundMessage))
	case errors.Is(err, models.ErrInvalidOption):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(invalidOptionMessage))
	case errors.Is(err, models.ErrMalformedFormData):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(malformedDataMessage))
	case errors.Is(err, models.ErrMissingFields):
		// Partial data is retained; the response names the gaps.
		writeJSONResponse(w, http.StatusBadRequest, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(flow.MissingFieldsMessage).
			WithResult(resp).
			Build())
	default:
		slog.Error("Server.handleChatMessage: engine failure", "sessionID", sessionID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(internalErrorMessage))
	}
}

// handleSessionGet returns the full session snapshot.
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	session, err := s.engine.GetSession(r.PathValue("id"))
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(sessionNotFoundMessage))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

// handleSessionDelete clears the session. Deleting twice is a no-op.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearSession(r.PathValue("id"))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(sessionClearedMessage, nil))
}
