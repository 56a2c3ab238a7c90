package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/playcat/catconsult/internal/models"
	"github.com/playcat/catconsult/internal/notify"
	"github.com/playcat/catconsult/internal/store"
)

const (
	consultationSubmittedMessage = "상담 신청이 완료되었습니다!"
	consultationNotFoundMessage  = "상담 내역을 찾을 수 없습니다."
	saveFailedMessage            = "상담 정보 저장에 실패했습니다."
)

// handleConsultationSubmit persists a completed intake and alerts the
// operator when contact details are present.
func (s *Server) handleConsultationSubmit(w http.ResponseWriter, r *http.Request) {
	var record models.ConsultationRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(invalidRequestBodyError))
		return
	}
	if err := record.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if err := s.st.SaveConsultation(&record); err != nil {
		slog.Error("Server.handleConsultationSubmit: save failed", "sessionID", record.SessionID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(saveFailedMessage))
		return
	}
	slog.Info("Server.handleConsultationSubmit: consultation saved", "id", record.ID, "sessionID", record.SessionID)

	if record.ContactName != "" || record.ContactPhone != "" {
		notify.SendQuoteRequestAlertAsync(s.notifier,
			notify.UserInfo{Name: record.ContactName, Phone: record.ContactPhone, Email: record.ContactEmail},
			notify.QuoteDetails{
				ProductName: fmt.Sprintf("캣워커 설치 (%s)", record.InstallationLocation),
				Quantity:    fmt.Sprintf("%d마리", record.CatCount),
				Message:     fmt.Sprintf("공간: %vx%vx%vcm", record.Width, record.Height, record.CeilingHeight),
			})
	}

	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(consultationSubmittedMessage,
		map[string]string{"consultation_id": record.ID}))
}

// handleConsultationList returns recent consultations, newest first.
func (s *Server) handleConsultationList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid limit parameter"))
			return
		}
		limit = parsed
	}

	records, err := s.st.ListConsultations(limit)
	if err != nil {
		slog.Error("Server.handleConsultationList: list failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(internalErrorMessage))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(records))
}

// handleConsultationGet returns one consultation by id.
func (s *Server) handleConsultationGet(w http.ResponseWriter, r *http.Request) {
	record, err := s.st.GetConsultation(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error(consultationNotFoundMessage))
			return
		}
		slog.Error("Server.handleConsultationGet: lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error(internalErrorMessage))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(record))
}
