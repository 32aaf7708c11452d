package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/workflows/jobsearch"
	"github.com/aretw0/tendril/pkg/workflows/outreach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	query   jobsearch.Query
	limit   int
	sendErr error
	creds   tendril.Credentials
}

func (f *fakeService) SearchJobs(ctx context.Context, q jobsearch.Query, limit int) (domain.SearchResult, error) {
	f.query, f.limit = q, limit
	return domain.SearchResult{Jobs: []domain.Job{{ID: 9, Title: "Gopher"}}, Pages: 1}, nil
}

func (f *fakeService) SearchPeople(ctx context.Context, company string, limit int, exclude ...string) (domain.PeopleResult, error) {
	return domain.PeopleResult{People: []domain.Person{{Name: "Ada", ProfileURL: "https://www.linkedin.com/in/ada"}}}, nil
}

func (f *fakeService) SendMessage(ctx context.Context, req outreach.Request) (domain.SubmissionResult, error) {
	if f.sendErr != nil {
		return domain.SubmissionResult{}, f.sendErr
	}
	return domain.SubmissionResult{Identifier: req.ProfileURL, Sent: true, Method: domain.MethodConnectionRequest}, nil
}

func (f *fakeService) ApplyEasy(ctx context.Context, jobURL string) (domain.ApplyResult, error) {
	return domain.ApplyResult{JobURL: jobURL, Submitted: true}, nil
}

func (f *fakeService) Login(ctx context.Context, c tendril.Credentials) (domain.LoginResult, error) {
	f.creds = c
	return domain.LoginResult{RunID: "r1", Status: domain.LoginAwaiting}, nil
}

func (f *fakeService) ConfirmLogin(ctx context.Context, runID string) (domain.LoginResult, error) {
	return domain.LoginResult{RunID: runID, Status: domain.LoginAuthenticated, Authenticated: true}, nil
}

func (f *fakeService) Graphs() map[string]graph.Topology {
	return map[string]graph.Topology{
		"auth": {Name: "auth", Entry: "navigate", Nodes: []string{"navigate"}, Edges: []graph.Edge{{From: "navigate", To: graph.End}}},
	}
}

var requestID int

func call(t *testing.T, s *Server, method string, params any) string {
	t.Helper()
	requestID++
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      requestID,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	resp := s.mcpServer.HandleMessage(context.Background(), raw)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(out)
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) string {
	t.Helper()
	return call(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
}

func TestListTools(t *testing.T) {
	s := NewServer(&fakeService{})
	out := call(t, s, "tools/list", map[string]any{})
	for _, name := range []string{"search_jobs", "search_people", "send_message", "apply_job", "login", "confirm_login"} {
		assert.Contains(t, out, fmt.Sprintf("%q", name))
	}
}

func TestSearchJobsTool(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc)

	out := callTool(t, s, "search_jobs", map[string]any{"keywords": "go", "location": "Lisbon", "easy_apply": true, "limit": 3})

	assert.Contains(t, out, `"title":"Gopher"`)
	assert.Equal(t, jobsearch.Query{Keywords: "go", Location: "Lisbon", EasyApply: true}, svc.query)
	assert.Equal(t, 3, svc.limit)
}

func TestSearchJobsTool_RequiresKeywords(t *testing.T) {
	out := callTool(t, NewServer(&fakeService{}), "search_jobs", map[string]any{})
	assert.Contains(t, out, `"isError":true`)
	assert.Contains(t, out, "keywords are required")
}

func TestSendMessageTool(t *testing.T) {
	out := callTool(t, NewServer(&fakeService{}), "send_message", map[string]any{"profile_url": "https://www.linkedin.com/in/ada", "text": "hi"})
	assert.Contains(t, out, `"sent":true`)
	assert.Contains(t, out, `"method":"connection_request"`)

	refused := NewServer(&fakeService{sendErr: fmt.Errorf("%w: ada", domain.ErrAlreadyContacted)})
	out = callTool(t, refused, "send_message", map[string]any{"profile_url": "https://www.linkedin.com/in/ada", "text": "hi"})
	assert.Contains(t, out, `"isError":true`)
	assert.Contains(t, out, "already contacted")
}

func TestLoginTools(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc)

	out := callTool(t, s, "login", map[string]any{"username": "ada"})
	assert.Contains(t, out, `"status":"awaiting_confirmation"`)
	assert.Equal(t, "ada", svc.creds.Username)

	out = callTool(t, s, "confirm_login", map[string]any{"run_id": "r1"})
	assert.Contains(t, out, `"authenticated":true`)
}

func TestOtherTools(t *testing.T) {
	s := NewServer(&fakeService{})

	assert.Contains(t, callTool(t, s, "search_people", map[string]any{"company": "acme"}), `"name":"Ada"`)
	assert.Contains(t, callTool(t, s, "apply_job", map[string]any{"job_url": "https://www.linkedin.com/jobs/view/1/"}), `"submitted":true`)
	assert.Contains(t, callTool(t, s, "apply_job", map[string]any{}), "job_url is required")
}

func TestGraphResource(t *testing.T) {
	s := NewServer(&fakeService{})

	out := call(t, s, "resources/read", map[string]any{"uri": "tendril://graphs/auth"})
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "navigate --\\u003e end_")
}
