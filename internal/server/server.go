package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/jonathan/codecraft/internal/analysis"
	"github.com/jonathan/codecraft/internal/config"
	"github.com/jonathan/codecraft/internal/db"
	"github.com/jonathan/codecraft/internal/deploy"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/implementation"
	"github.com/jonathan/codecraft/internal/metrics"
	"github.com/jonathan/codecraft/internal/server/middleware"
	"github.com/jonathan/codecraft/internal/server/ratelimit"
	"github.com/jonathan/codecraft/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Implementer runs implementation jobs.
type Implementer interface {
	Generate(ctx context.Context, req implementation.GenerateRequest) (*types.ImplementationJob, error)
	Batch(ctx context.Context, req implementation.BatchRequest) (*types.BatchRun, error)
	Status(ctx context.Context, repoURL, implementationID string) (*implementation.StatusResult, error)
	Plan(ctx context.Context, req implementation.PlanRequest) ([]types.Plan, error)
}

// Analyzer produces AI reports for collected repositories.
type Analyzer interface {
	Analyze(ctx context.Context, repo analysis.Repository) (*analysis.Report, error)
}

// Deployer triggers and inspects deployments.
type Deployer interface {
	Deploy(ctx context.Context, req deploy.DeployRequest) (*deploy.Deployment, error)
	GetDeployment(ctx context.Context, id string) (*deploy.Deployment, error)
}

// GitHubAPI is the GitHub surface exposed through the pass-through routes.
type GitHubAPI interface {
	analysis.RepoSource
	ListRepositories(ctx context.Context, opts github.ListOptions) ([]*github.Repository, error)
	ListBranches(ctx context.Context, repo github.RepoRef, opts github.ListOptions) ([]*github.Branch, error)
	ListCommits(ctx context.Context, repo github.RepoRef, branch string, opts github.ListOptions) ([]*github.Commit, error)
	ListPullRequests(ctx context.Context, repo github.RepoRef, opts github.ListOptions) ([]*github.PullRequest, error)
	CreatePullRequest(ctx context.Context, repo github.RepoRef, req github.NewPullRequest) (*github.PullRequest, error)
	UpdatePullRequest(ctx context.Context, repo github.RepoRef, number int, upd github.PullRequestUpdate) (*github.PullRequest, error)
	MergePullRequest(ctx context.Context, repo github.RepoRef, number int, message, method string) (*github.MergeResult, error)
	ClosePullRequest(ctx context.Context, repo github.RepoRef, number int) (*github.PullRequest, error)
	ListIssues(ctx context.Context, repo github.RepoRef, opts github.ListOptions) ([]*github.Issue, error)
	CreateIssue(ctx context.Context, repo github.RepoRef, req github.IssueRequest) (*github.Issue, error)
	UpdateIssue(ctx context.Context, repo github.RepoRef, number int, req github.IssueRequest) (*github.Issue, error)
	CloseIssue(ctx context.Context, repo github.RepoRef, number int) (*github.Issue, error)
}

// UserStore persists developer accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *db.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetUserByLogin(ctx context.Context, login string) (*db.User, error)
	ListUsers(ctx context.Context) ([]db.User, error)
	UpdateUser(ctx context.Context, u *db.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// ProjectStore persists project showcases.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *db.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*db.Project, error)
	ListProjects(ctx context.Context) ([]db.Project, error)
	ListProjectsByOwner(ctx context.Context, ownerID uuid.UUID) ([]db.Project, error)
	UpdateProject(ctx context.Context, p *db.Project) error
	SetDeploymentURL(ctx context.Context, id uuid.UUID, url string) error
	DeleteProject(ctx context.Context, id uuid.UUID) error
}

// MentorStore persists mentor accounts.
type MentorStore interface {
	CreateMentor(ctx context.Context, m *db.Mentor) error
	GetMentor(ctx context.Context, id uuid.UUID) (*db.Mentor, error)
	GetMentorByEmail(ctx context.Context, email string) (*db.Mentor, error)
	ListMentors(ctx context.Context) ([]db.Mentor, error)
	UpdateMentor(ctx context.Context, m *db.Mentor) error
	DeleteMentor(ctx context.Context, id uuid.UUID) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Server. Implementer and GitHub are required;
// every other integration switches its routes off (or to 503) when nil.
type Deps struct {
	Implementer Implementer
	GitHub      GitHubAPI
	Analyzer    Analyzer
	Deployer    Deployer

	Users    UserStore
	Projects ProjectStore
	Mentors  MentorStore
	Database Pinger

	JWT       *JWTService
	Passwords *config.PasswordConfig
	RateLimit *ratelimit.Config

	AllowedOrigins []string

	// WriteTimeout bounds a response, including synchronous batches. Zero means defaultWriteTimeout.
	WriteTimeout time.Duration
}

const defaultWriteTimeout = 30 * time.Minute

// Server represents the HTTP server
type Server struct {
	deps        Deps
	mentors     *MentorService
	rateLimiter *ratelimit.Limiter
	handler     http.Handler
	httpServer  *http.Server
}

// New creates a new server instance.
func New(deps Deps, port int) (*Server, error) {
	if deps.Implementer == nil {
		return nil, errors.New("implementer is required")
	}
	if deps.GitHub == nil {
		return nil, errors.New("github client is required")
	}
	if deps.Mentors != nil && (deps.JWT == nil || deps.Passwords == nil) {
		return nil, errors.New("mentor routes need JWT and password configuration")
	}
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = defaultWriteTimeout
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		deps:        deps,
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
	}
	if deps.Mentors != nil {
		s.mentors = NewMentorService(deps.Mentors, deps.Passwords, deps.JWT)
	}
	s.handler = s.withRateLimit(s.withLogging(s.withCORS(middleware.RequireValidJSON(s.routes()))))
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      deps.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/implementation/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/implementation/batch", s.handleBatch)
	mux.HandleFunc("GET /api/implementation/status", s.handleStatus)
	mux.HandleFunc("POST /api/implementation/plan", s.handlePlan)

	mux.HandleFunc("POST /api/analysis", s.handleAnalyze)

	mux.HandleFunc("POST /api/deployments", s.handleDeploy)
	mux.HandleFunc("GET /api/deployments/{id}", s.handleGetDeployment)

	mux.HandleFunc("GET /api/github/repos", s.handleListRepos)
	mux.HandleFunc("GET /api/github/repos/{owner}/{repo}", s.handleGetRepo)
	mux.HandleFunc("GET /api/github/repos/{owner}/{repo}/branches", s.handleListBranches)
	mux.HandleFunc("GET /api/github/repos/{owner}/{repo}/commits", s.handleListCommits)
	mux.HandleFunc("GET /api/github/repos/{owner}/{repo}/pulls", s.handleListPulls)
	mux.HandleFunc("POST /api/github/repos/{owner}/{repo}/pulls", s.handleCreatePull)
	mux.HandleFunc("PATCH /api/github/repos/{owner}/{repo}/pulls/{number}", s.handleUpdatePull)
	mux.HandleFunc("PUT /api/github/repos/{owner}/{repo}/pulls/{number}/merge", s.handleMergePull)
	mux.HandleFunc("DELETE /api/github/repos/{owner}/{repo}/pulls/{number}", s.handleClosePull)
	mux.HandleFunc("GET /api/github/repos/{owner}/{repo}/issues", s.handleListIssues)
	mux.HandleFunc("POST /api/github/repos/{owner}/{repo}/issues", s.handleCreateIssue)
	mux.HandleFunc("PATCH /api/github/repos/{owner}/{repo}/issues/{number}", s.handleUpdateIssue)
	mux.HandleFunc("DELETE /api/github/repos/{owner}/{repo}/issues/{number}", s.handleCloseIssue)

	if s.deps.Projects != nil {
		mux.HandleFunc("GET /api/projects", s.handleListProjects)
		mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
		mux.Handle("POST /api/projects", s.protect(s.handleCreateProject))
		mux.Handle("PUT /api/projects/{id}", s.protect(s.handleUpdateProject))
		mux.Handle("DELETE /api/projects/{id}", s.protect(s.handleDeleteProject))
	}

	if s.deps.Mentors != nil {
		mux.HandleFunc("POST /api/mentors/register", s.handleRegisterMentor)
		mux.HandleFunc("POST /api/mentors/login", s.handleLoginMentor)
		mux.HandleFunc("GET /api/mentors", s.handleListMentors)
		mux.HandleFunc("GET /api/mentors/{id}", s.handleGetMentor)
		mux.Handle("PUT /api/mentors/{id}", s.protect(s.handleUpdateMentor))
		mux.Handle("DELETE /api/mentors/{id}", s.protect(s.handleDeleteMentor))
	}

	if s.deps.Users != nil {
		mux.HandleFunc("GET /api/users", s.handleListUsers)
		mux.HandleFunc("POST /api/users", s.handleCreateUser)
		mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
		mux.HandleFunc("PUT /api/users/{id}", s.handleUpdateUser)
		mux.HandleFunc("DELETE /api/users/{id}", s.handleDeleteUser)
		if s.deps.Projects != nil {
			mux.HandleFunc("GET /api/users/{id}/projects", s.handleListUserProjects)
		}
	}

	return mux
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := clog.FromContext(ctx)
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// protect requires a mentor bearer token when JWT is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.deps.JWT == nil {
		return h
	}
	return middleware.RequireMentor(s.deps.JWT.AsTokenValidator())(h)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, allowed := range s.deps.AllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// withRateLimit rejects clients that exceeded their token bucket with 429.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(r.Context(), w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging attaches a request-scoped logger and records request metrics.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := clog.FromContext(r.Context()).With("method", r.Method, "path", r.URL.Path, "remote", clientID(r))
		ctx := clog.WithLogger(r.Context(), log)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		log.Infof("%s %s %d in %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// handleHealth reports liveness and, when configured, database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	if s.deps.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Database.Ping(ctx); err != nil {
			clog.FromContext(r.Context()).Warnf("Database health check failed: %v", err)
			s.jsonResponse(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
		body["database"] = "ok"
	}
	s.jsonResponse(r.Context(), w, http.StatusOK, body)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		clog.FromContext(ctx).Errorf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(ctx context.Context, w http.ResponseWriter, status int, message string) {
	s.jsonResponse(ctx, w, status, map[string]string{"error": message})
}

// failure maps err to a status and writes it. Internal errors are logged and
// replaced with a generic message.
func (s *Server) failure(ctx context.Context, w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		clog.FromContext(ctx).Errorf("Request failed: %v", err)
		message = "internal server error"
	}
	s.errorResponse(ctx, w, status, message)
}

// clientID extracts the client identifier (IP address) from RemoteAddr.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(ctx context.Context, w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if retry := int(info.RetryAfter.Seconds() + 0.999); retry > 0 {
		response["retry_after"] = retry
		w.Header().Set("Retry-After", strconv.Itoa(retry))
	}

	clog.FromContext(ctx).Warnf("Rate limit exceeded: limit=%d remaining=%d", info.Limit, info.Remaining)
	metrics.HTTPRequests.WithLabelValues("", strconv.Itoa(http.StatusTooManyRequests)).Inc()
	s.jsonResponse(ctx, w, http.StatusTooManyRequests, response)
}
