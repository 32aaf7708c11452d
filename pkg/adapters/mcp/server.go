// Package mcp exposes the Service as Model Context Protocol tools, so an
// agent can search, reach out and apply on the user's behalf.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/logging"
	mermaid "github.com/aretw0/tendril/internal/presentation/graph"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/graph"
	"github.com/aretw0/tendril/pkg/workflows/jobsearch"
	"github.com/aretw0/tendril/pkg/workflows/outreach"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Service is the part of tendril.Service the tools need.
type Service interface {
	SearchJobs(ctx context.Context, q jobsearch.Query, limit int) (domain.SearchResult, error)
	SearchPeople(ctx context.Context, company string, limit int, exclude ...string) (domain.PeopleResult, error)
	SendMessage(ctx context.Context, req outreach.Request) (domain.SubmissionResult, error)
	ApplyEasy(ctx context.Context, jobURL string) (domain.ApplyResult, error)
	Login(ctx context.Context, c tendril.Credentials) (domain.LoginResult, error)
	ConfirmLogin(ctx context.Context, runID string) (domain.LoginResult, error)
	Graphs() map[string]graph.Topology
}

var _ Service = (*tendril.Service)(nil)

// SearchJobsArgs are the arguments of search_jobs.
type SearchJobsArgs struct {
	Keywords  string `json:"keywords"`
	Location  string `json:"location,omitempty"`
	EasyApply bool   `json:"easy_apply,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// SearchPeopleArgs are the arguments of search_people.
type SearchPeopleArgs struct {
	Company string   `json:"company"`
	Limit   int      `json:"limit,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// SendMessageArgs are the arguments of send_message.
type SendMessageArgs struct {
	ProfileURL string `json:"profile_url"`
	Name       string `json:"name,omitempty"`
	Text       string `json:"text"`
	Subject    string `json:"subject,omitempty"`
}

// ApplyJobArgs are the arguments of apply_job.
type ApplyJobArgs struct {
	JobURL string `json:"job_url"`
}

// LoginArgs are the arguments of login. Empty fields use configured credentials.
type LoginArgs struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// ConfirmLoginArgs are the arguments of confirm_login.
type ConfirmLoginArgs struct {
	RunID string `json:"run_id"`
}

// Server wraps the Service and exposes it as an MCP server.
type Server struct {
	svc       Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("tendril-mcp", tendril.Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on Stdin/Stdout. Logs must go to Stderr.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sse.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sse.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("search_jobs",
		mcp.WithDescription("Search job postings and return their descriptions."),
		mcp.WithString("keywords", mcp.Required(), mcp.Description("Search keywords")),
		mcp.WithString("location", mcp.Description("Location filter")),
		mcp.WithBoolean("easy_apply", mcp.Description("Only jobs accepting Easy Apply")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of jobs (0 = up to the page cap)")),
		mcp.WithOutputSchema[domain.SearchResult](),
	), mcp.NewStructuredToolHandler(s.handleSearchJobs))

	s.mcpServer.AddTool(mcp.NewTool("search_people",
		mcp.WithDescription("Collect people listed on a company's people page."),
		mcp.WithString("company", mcp.Required(), mcp.Description("Company slug or URL")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of people (0 = up to the click cap)")),
		mcp.WithArray("exclude", mcp.WithStringItems(), mcp.Description("Profile URLs to skip")),
		mcp.WithOutputSchema[domain.PeopleResult](),
	), mcp.NewStructuredToolHandler(s.handleSearchPeople))

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a connection request with a note, or a direct message when connecting is not offered."),
		mcp.WithString("profile_url", mcp.Required(), mcp.Description("Profile URL of the recipient")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note or message body; notes are cut to 300 characters")),
		mcp.WithString("subject", mcp.Description("Message subject, when the compose form has one")),
		mcp.WithString("name", mcp.Description("Recipient name, for logs")),
		mcp.WithOutputSchema[domain.SubmissionResult](),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("apply_job",
		mcp.WithDescription("Fill and submit a job's Easy Apply form."),
		mcp.WithString("job_url", mcp.Required(), mcp.Description("Job posting URL")),
		mcp.WithOutputSchema[domain.ApplyResult](),
	), mcp.NewStructuredToolHandler(s.handleApplyJob))

	s.mcpServer.AddTool(mcp.NewTool("login",
		mcp.WithDescription("Sign in. May return awaiting_confirmation with a run_id when a security challenge must be solved in the browser."),
		mcp.WithString("username", mcp.Description("Account e-mail; defaults to configuration")),
		mcp.WithString("password", mcp.Description("Account password; defaults to configuration")),
		mcp.WithOutputSchema[domain.LoginResult](),
	), mcp.NewStructuredToolHandler(s.handleLogin))

	s.mcpServer.AddTool(mcp.NewTool("confirm_login",
		mcp.WithDescription("Resume a login after the security challenge was solved."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run ID returned by login")),
		mcp.WithOutputSchema[domain.LoginResult](),
	), mcp.NewStructuredToolHandler(s.handleConfirmLogin))
}

func (s *Server) handleSearchJobs(ctx context.Context, _ mcp.CallToolRequest, args SearchJobsArgs) (domain.SearchResult, error) {
	if args.Keywords == "" {
		return domain.SearchResult{}, errors.New("keywords are required")
	}
	return s.svc.SearchJobs(ctx, jobsearch.Query{
		Keywords:  args.Keywords,
		Location:  args.Location,
		EasyApply: args.EasyApply,
	}, args.Limit)
}

func (s *Server) handleSearchPeople(ctx context.Context, _ mcp.CallToolRequest, args SearchPeopleArgs) (domain.PeopleResult, error) {
	if args.Company == "" {
		return domain.PeopleResult{}, errors.New("company is required")
	}
	return s.svc.SearchPeople(ctx, args.Company, args.Limit, args.Exclude...)
}

func (s *Server) handleSendMessage(ctx context.Context, _ mcp.CallToolRequest, args SendMessageArgs) (domain.SubmissionResult, error) {
	if args.ProfileURL == "" {
		return domain.SubmissionResult{}, errors.New("profile_url is required")
	}
	res, err := s.svc.SendMessage(ctx, outreach.Request{
		ProfileURL: args.ProfileURL,
		Name:       args.Name,
		Text:       args.Text,
		Subject:    args.Subject,
	})
	if err != nil {
		s.logger.Warn("send_message refused", "profile", args.ProfileURL, "err", err)
	}
	return res, err
}

func (s *Server) handleApplyJob(ctx context.Context, _ mcp.CallToolRequest, args ApplyJobArgs) (domain.ApplyResult, error) {
	if args.JobURL == "" {
		return domain.ApplyResult{}, errors.New("job_url is required")
	}
	return s.svc.ApplyEasy(ctx, args.JobURL)
}

func (s *Server) handleLogin(ctx context.Context, _ mcp.CallToolRequest, args LoginArgs) (domain.LoginResult, error) {
	return s.svc.Login(ctx, tendril.Credentials{Username: args.Username, Password: args.Password})
}

func (s *Server) handleConfirmLogin(ctx context.Context, _ mcp.CallToolRequest, args ConfirmLoginArgs) (domain.LoginResult, error) {
	if args.RunID == "" {
		return domain.LoginResult{}, errors.New("run_id is required")
	}
	return s.svc.ConfirmLogin(ctx, args.RunID)
}

func (s *Server) registerResources() {
	graphs := s.svc.Graphs()
	names := make([]string, 0, len(graphs))
	for name := range graphs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		uri := "tendril://graphs/" + name
		topo := graphs[name]
		s.mcpServer.AddResource(mcp.NewResource(uri, name+" workflow",
			mcp.WithResourceDescription("Mermaid flowchart of the "+name+" workflow"),
			mcp.WithMIMEType("text/plain"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      uri,
					MIMEType: "text/plain",
					Text:     mermaid.GenerateMermaid(topo, nil),
				},
			}, nil
		})
	}
}
