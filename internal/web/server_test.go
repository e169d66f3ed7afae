package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trusthire/trusthire/internal/enrichment"
	"github.com/trusthire/trusthire/internal/metrics"
	"github.com/trusthire/trusthire/internal/result"
	"github.com/trusthire/trusthire/internal/trusthire"
	"go.uber.org/zap"
)

type fakeVerifier struct {
	mu        sync.Mutex
	view      *result.View
	err       error
	healthErr error
	requests  []*trusthire.VerificationRequest
}

func (f *fakeVerifier) SubmitVerification(_ context.Context, req *trusthire.VerificationRequest) (*result.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := req.Validate(trusthire.DefaultUploadLimits()); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)
	return f.view, f.err
}

func (f *fakeVerifier) Health(context.Context) error {
	return f.healthErr
}

type fakeQuestions struct {
	questions []string
}

func (f fakeQuestions) FetchInterviewQuestions(context.Context, []string) ([]string, error) {
	return f.questions, nil
}

func newTestServer(t *testing.T, verifier *fakeVerifier) (*Server, *enrichment.Controller) {
	t.Helper()

	ctrl := enrichment.New(context.Background(), fakeQuestions{questions: []string{"How do goroutines differ from threads?"}}, zap.NewNop())
	t.Cleanup(ctrl.Drain)

	srv, err := NewServer(verifier, ctrl, trusthire.DefaultUploadLimits(), metrics.New(), zap.NewNop())
	require.NoError(t, err)
	return srv, ctrl
}

func multipartBody(t *testing.T, filename, content, username string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if filename != "" {
		part, err := w.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("github_username", username))
	require.NoError(t, w.Close())

	return &body, w.FormDataContentType()
}

func sampleView() *result.View {
	return result.Normalize(map[string]any{
		"trust_score":      72,
		"risk_level":       "MEDIUM",
		"match_percentage": 55.5,
		"matched_skills": []any{
			map[string]any{"skill": "Go", "found_in_github": true},
			map[string]any{"skill": "Rust", "found_in_github": false},
		},
	})
}

func TestDashboardEmpty(t *testing.T) {
	srv, _ := newTestServer(t, &fakeVerifier{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
	assert.NotContains(t, rec.Body.String(), `id="result"`)
}

func TestVerifyPublishesResult(t *testing.T) {
	verifier := &fakeVerifier{view: sampleView()}
	srv, ctrl := newTestServer(t, verifier)

	body, contentType := multipartBody(t, "cv.pdf", "%PDF-1.4", "octocat")
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	require.Len(t, verifier.requests, 1)
	assert.Equal(t, "cv.pdf", verifier.requests[0].ResumeName)
	assert.Equal(t, "octocat", verifier.requests[0].Identity)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := ctrl.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, enrichment.StatusDone, snap.Status)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	page := rec.Body.String()
	assert.Contains(t, page, `<span class="badge yellow" id="risk">MEDIUM</span>`)
	assert.Contains(t, page, "Skill match 55.50%")
	assert.Contains(t, page, `<span class="badge green">Go</span>`)
	assert.Contains(t, page, `<span class="badge red">Rust</span>`)
	assert.Contains(t, page, "<ol><li>How do goroutines differ from threads?</li></ol>")
	assert.Contains(t, page, "No skills available")
}

func TestDashboardWithoutQuestions(t *testing.T) {
	srv, ctrl := newTestServer(t, &fakeVerifier{})
	snap := ctrl.Publish(result.Normalize(map[string]any{
		"trust_score": 10,
		"risk_level":  "HIGH",
		"matched_skills": []any{
			map[string]any{"skill": "Rust", "found_in_github": false},
		},
	}))
	require.Equal(t, enrichment.StatusDone, snap.Status)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	page := rec.Body.String()
	assert.Contains(t, page, `<p class="muted">No interview questions available</p>`)
	assert.NotContains(t, page, "<ol>")
}

func TestVerifyValidationErrorKeepsState(t *testing.T) {
	verifier := &fakeVerifier{view: sampleView()}
	srv, ctrl := newTestServer(t, verifier)
	before := ctrl.Publish(sampleView())

	tests := []struct {
		name     string
		filename string
		username string
		message  string
	}{
		{name: "missing file", username: "octocat", message: "invalid resume"},
		{name: "missing username", filename: "cv.pdf", message: "invalid github_username"},
		{name: "wrong type", filename: "cv.txt", username: "octocat", message: "only .pdf files are allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.filename, "data", tt.username)
			req := httptest.NewRequest(http.MethodPost, "/verify", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Equal(t, before.Tag, ctrl.Snapshot().Tag)
		})
	}

	assert.Empty(t, verifier.requests)
}

func TestVerifyTransportErrorClearsResult(t *testing.T) {
	verifier := &fakeVerifier{err: &trusthire.TransportError{
		Op:         trusthire.OpVerify,
		URL:        "http://127.0.0.1:8000/api/v1/verify",
		StatusCode: http.StatusBadGateway,
		Status:     "502 Bad Gateway",
		Detail:     "No technical skills found in resume",
	}}
	srv, ctrl := newTestServer(t, verifier)
	ctrl.Publish(sampleView())

	body, contentType := multipartBody(t, "cv.pdf", "%PDF-1.4", "octocat")
	req := httptest.NewRequest(http.MethodPost, "/verify", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	snap := ctrl.Snapshot()
	assert.False(t, snap.Ready())
	assert.Contains(t, snap.SubmitError, "502 Bad Gateway")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), `id="submit-error"`)
	assert.Contains(t, rec.Body.String(), "No technical skills found in resume")
	assert.NotContains(t, rec.Body.String(), `id="result"`)
}

func TestVerifyRejectsMalformedForm(t *testing.T) {
	srv, _ := newTestServer(t, &fakeVerifier{})

	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid form submission")
}

func TestStateEndpoint(t *testing.T) {
	srv, ctrl := newTestServer(t, &fakeVerifier{})
	published := ctrl.Publish(result.Normalize(map[string]any{"trust_score": 40, "risk_level": "LOW"}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Tag    string `json:"tag"`
		Status string `json:"status"`
		Result struct {
			TrustScore float64 `json:"trust_score"`
			RiskColor  string  `json:"risk_color"`
		} `json:"result"`
		Questions []string `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, published.Tag, got.Tag)
	assert.Equal(t, "done", got.Status)
	assert.Equal(t, 40.0, got.Result.TrustScore)
	assert.Equal(t, "green", got.Result.RiskColor)
	assert.NotNil(t, got.Questions)
}

func TestHealthEndpoint(t *testing.T) {
	verifier := &fakeVerifier{}
	srv, _ := newTestServer(t, verifier)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	verifier.healthErr = errors.New("connection refused")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","upstream":"connection refused"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeVerifier{})

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `trusthire_http_requests_total{code="200",method="GET",path="/"} 1`)
}
