package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jonathan/codecraft/internal/analysis"
	"github.com/jonathan/codecraft/internal/config"
	"github.com/jonathan/codecraft/internal/db"
	"github.com/jonathan/codecraft/internal/deploy"
	"github.com/jonathan/codecraft/internal/gemini"
	"github.com/jonathan/codecraft/internal/github"
	"github.com/jonathan/codecraft/internal/gitops"
	"github.com/jonathan/codecraft/internal/implementation"
	"github.com/jonathan/codecraft/internal/jobstore"
	"github.com/jonathan/codecraft/internal/llm"
	"github.com/jonathan/codecraft/internal/server"
	"github.com/jonathan/codecraft/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the implementation, analysis, deployment and GitHub endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := clog.FromContext(ctx)

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(deps, cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	log.Infof("Listening on port %d", cfg.Port)
	return srv.Run(ctx)
}

// buildDeps wires every integration the configuration enables. The returned
// cleanup releases connections and must be called once the server stops.
func buildDeps(ctx context.Context, cfg *config.Config) (server.Deps, func(), error) {
	log := clog.FromContext(ctx)
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (server.Deps, func(), error) {
		cleanup()
		return server.Deps{}, func() {}, err
	}

	var deps server.Deps

	gh, err := github.NewClient(ctx, cfg.GitHubToken)
	if err != nil {
		return fail(fmt.Errorf("failed to create GitHub client: %w", err))
	}
	if cfg.GitHubToken == "" {
		log.Warn("GITHUB_TOKEN is not set; pushes and pull requests will fail")
	}
	deps.GitHub = gh

	var store jobstore.Store = jobstore.NewMemory()
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			return fail(err)
		}
		jobs := db.NewJobStore(database)
		n, err := jobs.FailInterrupted(ctx, time.Now().UTC())
		if err != nil {
			return fail(err)
		}
		if n > 0 {
			log.Warnf("Marked %d job(s) left unfinished by a previous run as failed", n)
		}
		store = jobs
		deps.Database = database
		deps.Users = database
		deps.Projects = database
		if cfg.AuthEnabled() {
			deps.Mentors = database
		} else {
			log.Warn("JWT_SECRET is not set; mentor routes are disabled and project writes are unauthenticated")
		}
	} else {
		log.Info("DATABASE_URL is not set; using the in-memory job store")
	}

	if cfg.AuthEnabled() {
		jwtConfig, err := config.NewJWTConfig(cfg)
		if err != nil {
			return fail(err)
		}
		passwords, err := config.NewPasswordConfig(cfg)
		if err != nil {
			return fail(err)
		}
		deps.JWT = server.NewJWTService(jwtConfig)
		deps.Passwords = passwords
	}

	ws, err := gitops.New(cfg.WorkspaceDir, cfg.GitHubToken, gitops.Identity{
		Name:  cfg.GitAuthorName,
		Email: cfg.GitAuthorEmail,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to create git workspace: %w", err))
	}

	orchestrator, err := implementation.New(implementation.Deps{
		Store:        store,
		Runner:       gemini.NewCLIRunner(cfg.GeminiBinary, cfg.GeminiTimeout),
		Bootstrapper: gemini.NewBootstrapper(),
		Workspace:    implementation.GitWorkspace(ws),
		PullRequests: gh,
	}, implementation.Options{
		MaxConcurrency: cfg.MaxConcurrency,
		MaxBatchSize:   cfg.MaxBatchSize,
		Timeout:        cfg.GeminiTimeout,
		Model:          cfg.GeminiModel,
	})
	if err != nil {
		return fail(err)
	}
	deps.Implementer = orchestrator

	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, llm.ConfigForModel(cfg.AnalysisModel), cfg.GeminiAPIKey)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = client.Close() })
		deps.Analyzer = analysis.NewService(client)
	} else {
		log.Warn("GEMINI_API_KEY is not set; /api/analysis is disabled")
	}

	if cfg.VercelToken != "" {
		deployer, err := deploy.NewClient(ctx, cfg.VercelToken, deploy.Options{TeamID: cfg.VercelTeamID})
		if err != nil {
			return fail(err)
		}
		deps.Deployer = deployer
	}

	deps.RateLimit = ratelimit.NewConfig(ratelimit.Settings{
		Enabled:         cfg.RateLimitEnabled,
		DefaultLimit:    cfg.RateLimitDefaultLimit,
		DefaultWindow:   cfg.RateLimitDefaultWindow,
		CleanupInterval: cfg.RateLimitCleanupInterval,
		Whitelist:       cfg.RateLimitWhitelist,
		Blacklist:       cfg.RateLimitBlacklist,
	})
	deps.AllowedOrigins = cfg.CORSAllowedOrigins
	deps.WriteTimeout = cfg.WriteTimeout()

	return deps, cleanup, nil
}
