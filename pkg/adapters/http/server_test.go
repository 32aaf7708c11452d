package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/workflows/jobsearch"
	"github.com/aretw0/tendril/pkg/workflows/outreach"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockService records calls and answers from its fields.
type MockService struct {
	Jobs      domain.SearchResult
	JobsErr   error
	LastQuery jobsearch.Query
	LastLimit int
	SendErr   error
	Sent      []outreach.Request
	LoginRes  domain.LoginResult
	Confirmed string
	Cancelled string
}

func (m *MockService) SearchJobs(ctx context.Context, q jobsearch.Query, limit int) (domain.SearchResult, error) {
	m.LastQuery, m.LastLimit = q, limit
	return m.Jobs, m.JobsErr
}

func (m *MockService) SearchJobsBatch(ctx context.Context, qs []jobsearch.Query, limit int) []domain.SearchResult {
	out := make([]domain.SearchResult, len(qs))
	for i := range qs {
		out[i] = m.Jobs
	}
	return out
}

func (m *MockService) SearchPeople(ctx context.Context, company string, limit int, exclude ...string) (domain.PeopleResult, error) {
	return domain.PeopleResult{People: []domain.Person{{Name: company, ProfileURL: "https://www.linkedin.com/in/x"}}}, nil
}

func (m *MockService) SendMessage(ctx context.Context, req outreach.Request) (domain.SubmissionResult, error) {
	m.Sent = append(m.Sent, req)
	if m.SendErr != nil {
		return domain.SubmissionResult{Identifier: req.ProfileURL, Method: domain.MethodSkip}, m.SendErr
	}
	return domain.SubmissionResult{Identifier: req.ProfileURL, Sent: true, Method: domain.MethodDirectMessage}, nil
}

func (m *MockService) SendMessages(ctx context.Context, reqs []outreach.Request) []domain.SubmissionResult {
	out := make([]domain.SubmissionResult, len(reqs))
	for i, r := range reqs {
		out[i], _ = m.SendMessage(ctx, r)
	}
	return out
}

func (m *MockService) ApplyEasy(ctx context.Context, jobURL string) (domain.ApplyResult, error) {
	return domain.ApplyResult{JobURL: jobURL, Submitted: true, Steps: 2}, nil
}

func (m *MockService) Login(ctx context.Context, c tendril.Credentials) (domain.LoginResult, error) {
	return m.LoginRes, nil
}

func (m *MockService) ConfirmLogin(ctx context.Context, runID string) (domain.LoginResult, error) {
	if runID != m.LoginRes.RunID {
		return domain.LoginResult{}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	m.Confirmed = runID
	return domain.LoginResult{RunID: runID, Status: domain.LoginAuthenticated, Authenticated: true}, nil
}

func (m *MockService) CancelLogin(runID string) error {
	if runID != m.LoginRes.RunID {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	m.Cancelled = runID
	return nil
}

func (m *MockService) Topology(name string) (graph.Topology, bool) {
	if name != "outreach" {
		return graph.Topology{}, false
	}
	return graph.Topology{
		Name:  "outreach",
		Entry: "navigate_to_target",
		Nodes: []string{"navigate_to_target", "detect_action"},
		Edges: []graph.Edge{{From: "navigate_to_target", To: "detect_action"}, {From: "detect_action", To: graph.End, Label: "skip"}},
	}, true
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, NewHandler(&MockService{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSearchJobs(t *testing.T) {
	svc := &MockService{Jobs: domain.SearchResult{Jobs: []domain.Job{{ID: 1, Title: "Go"}}, Pages: 1}}
	w := do(t, NewHandler(svc), http.MethodPost, "/jobs/search", `{"keywords":"go","location":"Porto","easy_apply":true,"limit":5}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res domain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Jobs, 1)
	assert.Equal(t, jobsearch.Query{Keywords: "go", Location: "Porto", EasyApply: true}, svc.LastQuery)
	assert.Equal(t, 5, svc.LastLimit)
}

func TestSearchJobs_BadInput(t *testing.T) {
	h := NewHandler(&MockService{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"keywords":`},
		{"unknown field", `{"keywords":"go","pages":3}`},
		{"missing keywords", `{"location":"Porto"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/jobs/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSearchJobs_ServiceFailure(t *testing.T) {
	svc := &MockService{JobsErr: fmt.Errorf("%w: search", domain.ErrLockAcquire)}
	w := do(t, NewHandler(svc), http.MethodPost, "/jobs/search", `{"keywords":"go"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSearchJobsBatch(t *testing.T) {
	svc := &MockService{Jobs: domain.SearchResult{Jobs: []domain.Job{}}}
	w := do(t, NewHandler(svc), http.MethodPost, "/jobs/search/batch", `{"queries":[{"keywords":"go"},{"keywords":"rust"}],"limit":3}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res []domain.SearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res, 2)
}

func TestSendMessage_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("%w: x", domain.ErrAlreadyContacted), http.StatusConflict},
		{fmt.Errorf("%w: 50 per day", domain.ErrQuotaExceeded), http.StatusTooManyRequests},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.want), func(t *testing.T) {
			svc := &MockService{SendErr: tt.err}
			w := do(t, NewHandler(svc), http.MethodPost, "/messages", `{"profile_url":"https://www.linkedin.com/in/ada","text":"hi"}`)
			assert.Equal(t, tt.want, w.Code)
			require.Len(t, svc.Sent, 1)
			assert.Equal(t, "hi", svc.Sent[0].Text)
		})
	}
}

func TestSendMessages(t *testing.T) {
	svc := &MockService{}
	w := do(t, NewHandler(svc), http.MethodPost, "/messages/batch", `{"messages":[{"profile_url":"a","text":"1"},{"profile_url":"b","text":"2"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, svc.Sent, 2)

	w = do(t, NewHandler(svc), http.MethodPost, "/messages/batch", `{"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPeopleAndApply(t *testing.T) {
	h := NewHandler(&MockService{})

	w := do(t, h, http.MethodPost, "/people/search", `{"company":"acme","limit":10}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"acme"`)

	w = do(t, h, http.MethodPost, "/jobs/apply", `{"job_url":"https://www.linkedin.com/jobs/view/1/"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"submitted":true`)

	w = do(t, h, http.MethodPost, "/jobs/apply", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginLifecycle(t *testing.T) {
	svc := &MockService{LoginRes: domain.LoginResult{RunID: "run-1", Status: domain.LoginAwaiting, Prompt: "solve it"}}
	h := NewHandler(svc)

	w := do(t, h, http.MethodPost, "/auth/login", `{"username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"run-1"`)

	w = do(t, h, http.MethodPost, "/auth/login/run-1/confirm", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "run-1", svc.Confirmed)

	w = do(t, h, http.MethodPost, "/auth/login/nope/confirm", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/auth/login/run-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "run-1", svc.Cancelled)
}

func TestGetGraph(t *testing.T) {
	h := NewHandler(&MockService{})

	w := do(t, h, http.MethodGet, "/graphs/outreach", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))
	assert.Contains(t, w.Body.String(), `detect_action -- "skip" --> end_`)

	w = do(t, h, http.MethodGet, "/graphs/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "tendril_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	w := do(t, NewHandler(&MockService{}, WithGatherer(reg)), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tendril_test_total 1")
}
