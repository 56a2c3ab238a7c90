package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/playcat/catconsult/internal/models"
)

type mockLLM struct {
	reply       string
	lastMessage string
	lastHistory []models.ChatMessage
	calls       int
}

func (m *mockLLM) Chat(ctx context.Context, message string, history []models.ChatMessage) string {
	m.calls++
	m.lastMessage = message
	m.lastHistory = history
	return m.reply
}

type mockAnalyzer struct {
	analysis *models.ConsultationAnalysis
	err      error
}

func (m *mockAnalyzer) AnalyzeConsultation(ctx context.Context, data map[string]interface{}) (*models.ConsultationAnalysis, error) {
	return m.analysis, m.err
}

type mockMedia struct {
	job     *VideoJob
	err     error
	lastReq VideoRequest
	calls   int
}

func (m *mockMedia) GenerateCatVideo(ctx context.Context, req VideoRequest) (*VideoJob, error) {
	m.calls++
	m.lastReq = req
	return m.job, m.err
}

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *mockLLM) {
	t.Helper()
	f, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}
	llm := &mockLLM{reply: "도움이 되셨길 바랍니다."}
	return NewEngine(f, NewSessionStore(), llm, opts...), llm
}

func TestEngine_StartSession(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()

	if started.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if started.Step != "greeting" {
		t.Errorf("expected greeting step, got %q", started.Step)
	}
	if started.Message == "" || len(started.Options) == 0 {
		t.Error("greeting must carry a message and options")
	}
}

func TestEngine_DetailedQuoteSelection(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "detailed_quote")
	if err != nil {
		t.Fatalf("option selection failed: %v", err)
	}
	if resp.Step != "consultation_form" {
		t.Errorf("expected transition to consultation_form, got %q", resp.Step)
	}
	if len(resp.RequiredFields) == 0 {
		t.Error("form step response must list its required fields")
	}

	session, err := engine.GetSession(started.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if session.ConsultationType != models.ConsultationTypeDetailedQuote {
		t.Errorf("expected consultation type %q, got %q", models.ConsultationTypeDetailedQuote, session.ConsultationType)
	}
	if session.CurrentStepID != "consultation_form" {
		t.Errorf("expected current step consultation_form, got %q", session.CurrentStepID)
	}
}

func TestEngine_InvalidOption(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()

	_, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "not_an_option")
	if !errors.Is(err, models.ErrInvalidOption) {
		t.Errorf("expected ErrInvalidOption, got %v", err)
	}

	session, _ := engine.GetSession(started.SessionID)
	if session.CurrentStepID != "greeting" {
		t.Error("invalid option must not change the current step")
	}
	if session.ConsultationType != "" {
		t.Error("invalid option must not set the consultation type")
	}
}

func TestEngine_UnknownSession(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.ProcessMessage(context.Background(), "no-such-session", "안녕하세요", "")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEngine_FreeChat(t *testing.T) {
	engine, llm := newTestEngine(t)
	started := engine.StartSession()

	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "behavior_consult"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID, "고양이가 밤에 웁니다", "")
	if err != nil {
		t.Fatalf("chat turn failed: %v", err)
	}
	if resp.Message != llm.reply {
		t.Errorf("expected LLM reply, got %q", resp.Message)
	}
	if resp.Step != "free_chat" {
		t.Errorf("expected free_chat step, got %q", resp.Step)
	}
	if llm.lastMessage != "고양이가 밤에 웁니다" {
		t.Errorf("LLM received wrong message %q", llm.lastMessage)
	}

	session, _ := engine.GetSession(started.SessionID)
	n := len(session.History)
	if n < 2 {
		t.Fatalf("expected user and assistant turns in history, got %d entries", n)
	}
	if session.History[n-1].Role != models.RoleAssistant || session.History[n-1].Content != llm.reply {
		t.Error("assistant reply must be recorded in history")
	}
	if session.History[n-2].Role != models.RoleUser {
		t.Error("user message must be recorded before the assistant reply")
	}
}

func TestEngine_FormMergeAndMissingFields(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "simple_quote"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID, `{"installation_region":"서울"}`, "")
	if !errors.Is(err, models.ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if len(resp.MissingFields) != 3 {
		t.Errorf("expected 3 missing fields, got %v", resp.MissingFields)
	}

	// Partial data survives a failed validation; resubmission only needs
	// the gaps, and overwrite is by key.
	session, _ := engine.GetSession(started.SessionID)
	if session.CollectedData["installation_region"] != "서울" {
		t.Error("merged data must be retained after a missing-fields response")
	}

	resp, err = engine.ProcessMessage(context.Background(), started.SessionID,
		`{"installation_region":"부산","cat_count":2,"width":300,"height":240}`, "")
	if err != nil {
		t.Fatalf("complete submission failed: %v", err)
	}
	session, _ = engine.GetSession(started.SessionID)
	if session.CollectedData["installation_region"] != "부산" {
		t.Error("resubmitted key must overwrite the earlier value")
	}
	if session.CollectedData["cat_count"] != float64(2) {
		t.Errorf("unexpected cat_count %v", session.CollectedData["cat_count"])
	}

	if resp.Message != "상담 정보가 접수되었습니다. 분석 중입니다..." {
		t.Errorf("unexpected acceptance message %q", resp.Message)
	}
	if resp.NextAction != "generate_quote" {
		t.Errorf("unexpected next action %q", resp.NextAction)
	}
	if resp.VideoGeneration != nil {
		t.Error("simple quote must not trigger video generation")
	}
}

func TestEngine_FormZeroValueCountsAsMissing(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "simple_quote"); err != nil {
		t.Fatal(err)
	}

	_, err := engine.ProcessMessage(context.Background(), started.SessionID,
		`{"installation_region":"서울","cat_count":0,"width":300,"height":240}`, "")
	if !errors.Is(err, models.ErrMissingFields) {
		t.Errorf("zero cat_count should count as missing, got %v", err)
	}
}

func TestEngine_MalformedFormData(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "simple_quote"); err != nil {
		t.Fatal(err)
	}

	_, err := engine.ProcessMessage(context.Background(), started.SessionID, "이건 JSON이 아닙니다", "")
	if !errors.Is(err, models.ErrMalformedFormData) {
		t.Errorf("expected ErrMalformedFormData, got %v", err)
	}

	session, _ := engine.GetSession(started.SessionID)
	if len(session.CollectedData) != 0 {
		t.Error("malformed payload must not merge any data")
	}
}

func TestEngine_AnalysisFallback(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "simple_quote"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID,
		`{"installation_region":"서울","cat_count":1,"width":200,"height":200}`, "")
	if err != nil {
		t.Fatal(err)
	}

	analysis, ok := resp.Analysis.(*models.ConsultationAnalysis)
	if !ok {
		t.Fatalf("unexpected analysis type %T", resp.Analysis)
	}
	if analysis.Summary != "상담 데이터가 수집되었습니다." {
		t.Errorf("unexpected fallback summary %q", analysis.Summary)
	}
	if len(analysis.Recommendations) != 1 || analysis.Recommendations[0] != "전문 상담사가 곧 연락드리겠습니다." {
		t.Errorf("unexpected fallback recommendations %v", analysis.Recommendations)
	}
}

func TestEngine_AnalyzerUsedWhenPresent(t *testing.T) {
	analyzer := &mockAnalyzer{analysis: &models.ConsultationAnalysis{Summary: "맞춤 분석"}}
	engine, _ := newTestEngine(t, WithAnalyzer(analyzer))
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "simple_quote"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID,
		`{"installation_region":"서울","cat_count":1,"width":200,"height":200}`, "")
	if err != nil {
		t.Fatal(err)
	}
	analysis := resp.Analysis.(*models.ConsultationAnalysis)
	if analysis.Summary != "맞춤 분석" {
		t.Errorf("expected analyzer result, got %q", analysis.Summary)
	}
}

func TestEngine_AnalyzerFailureFallsBack(t *testing.T) {
	analyzer := &mockAnalyzer{err: fmt.Errorf("model unavailable")}
	engine, _ := newTestEngine(t, WithAnalyzer(analyzer))
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "simple_quote"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID,
		`{"installation_region":"서울","cat_count":1,"width":200,"height":200}`, "")
	if err != nil {
		t.Fatalf("analysis failure must not fail the submission: %v", err)
	}
	analysis := resp.Analysis.(*models.ConsultationAnalysis)
	if analysis.Summary != "상담 데이터가 수집되었습니다." {
		t.Errorf("expected fallback after analyzer failure, got %q", analysis.Summary)
	}
}

const detailedFormPayload = `{
	"installation_region": "서울",
	"installation_location": "가정집",
	"cat_count": 1,
	"width": 300,
	"height": 240,
	"product_color": "wood",
	"cats": [{"breed": "러시안블루", "personality": "활발한", "cat_photo": "/uploads/cat1.jpg", "expected_activity": "높은 곳을 오르내리는 것을 좋아해요"}]
}`

func TestEngine_DetailedQuoteTriggersVideo(t *testing.T) {
	media := &mockMedia{job: &VideoJob{ImageURL: "/out/img.png", VideoURL: "/out/vid.mp4", JobID: "job-1"}}
	engine, _ := newTestEngine(t, WithMediaGenerator(media))
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "detailed_quote"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID, detailedFormPayload, "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.VideoGeneration == nil {
		t.Fatal("detailed quote submission must attach a video generation result")
	}
	if resp.VideoGeneration.Status != models.VideoStatusSuccess {
		t.Fatalf("expected success status, got %q (%s)", resp.VideoGeneration.Status, resp.VideoGeneration.Message)
	}
	if resp.VideoGeneration.VideoURL != "/out/vid.mp4" || resp.VideoGeneration.JobID != "job-1" {
		t.Errorf("unexpected video result %+v", resp.VideoGeneration)
	}
	if media.calls != 1 {
		t.Errorf("expected exactly one media call, got %d", media.calls)
	}
	if media.lastReq.Duration != 5.0 {
		t.Errorf("expected 5 second duration, got %v", media.lastReq.Duration)
	}
}

func TestEngine_VideoFailureDoesNotFailSubmission(t *testing.T) {
	media := &mockMedia{err: fmt.Errorf("comfyui unreachable")}
	engine, _ := newTestEngine(t, WithMediaGenerator(media))
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "detailed_quote"); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.ProcessMessage(context.Background(), started.SessionID, detailedFormPayload, "")
	if err != nil {
		t.Fatalf("video failure must not fail the submission: %v", err)
	}
	if resp.VideoGeneration == nil || resp.VideoGeneration.Status != models.VideoStatusError {
		t.Fatalf("expected error sub-result, got %+v", resp.VideoGeneration)
	}
	if resp.VideoGeneration.Message != "비디오 생성 실패: comfyui unreachable" {
		t.Errorf("unexpected failure message %q", resp.VideoGeneration.Message)
	}
	if resp.Message == "" || resp.NextAction != "generate_quote" {
		t.Error("submission response must remain intact despite video failure")
	}
}

func TestEngine_VideoSkippedWithoutQualifyingCat(t *testing.T) {
	media := &mockMedia{job: &VideoJob{}}
	engine, _ := newTestEngine(t, WithMediaGenerator(media))
	started := engine.StartSession()
	if _, err := engine.ProcessMessage(context.Background(), started.SessionID, "", "detailed_quote"); err != nil {
		t.Fatal(err)
	}

	payload := `{"installation_region":"서울","installation_location":"가정집","cat_count":1,"width":300,"height":240,"product_color":"wood","cats":[{"breed":"코숏"}]}`
	resp, err := engine.ProcessMessage(context.Background(), started.SessionID, payload, "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.VideoGeneration == nil || resp.VideoGeneration.Status != models.VideoStatusSkipped {
		t.Fatalf("expected skipped sub-result, got %+v", resp.VideoGeneration)
	}
	if resp.VideoGeneration.Message != "고양이 사진 또는 기대하는 활동 정보가 없습니다." {
		t.Errorf("unexpected skip message %q", resp.VideoGeneration.Message)
	}
	if media.calls != 0 {
		t.Error("media generator must not be called without a qualifying cat")
	}
}

func TestEngine_ClearSessionIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	started := engine.StartSession()

	engine.ClearSession(started.SessionID)
	if _, err := engine.GetSession(started.SessionID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Error("cleared session must be gone")
	}
	engine.ClearSession(started.SessionID) // second clear is a no-op
}
