// Package httpapi exposes the chat session to the browser as a JSON API and
// serves stored media. Routes use Go 1.22 method/path patterns:
//
//	GET  /api/state                     session snapshot
//	GET  /api/messages                  message log
//	POST /api/messages                  send a user message
//	POST /api/generate                  user-initiated image/video
//	GET  /api/bots[/{id}[/export]]      roster and profile export
//	POST /api/bots/{id}/media/{kind}    avatar, bikini or video for one persona
//	POST /api/bots/media/{kind}         avatar or bikini for every persona
//	GET  /api/related                   personas related to a selection
//	GET  /api/teams[/{id}[/export]]     teams with resolved members
//	GET  /api/console                   diagnostic console
//	GET|PUT /api/settings               model selection
//	GET  /api/models                    selectable models
//	POST /api/credential                supply the API key
//	GET  /api/export/chat               transcript as Markdown
//	GET  /media/{id}                    stored artifact
//	GET  /healthz                       liveness
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/edgard/personachat/internal/chat"
	"github.com/edgard/personachat/internal/config"
	"github.com/edgard/personachat/internal/console"
	"github.com/edgard/personachat/internal/logger"
	"github.com/edgard/personachat/internal/media"
	"github.com/edgard/personachat/internal/roster"
)

// Session is the chat session behind the API. *chat.Session implements it.
type Session interface {
	State() chat.State
	Messages() []chat.Message
	Send(ctx context.Context, text string) ([]chat.Message, error)
	GenerateMedia(ctx context.Context, req chat.MediaRequest) ([]chat.Message, error)
	Settings() chat.Settings
	SetSettings(ctx context.Context, s chat.Settings) error
	ExportMarkdown() string
	Roster() *roster.Registry
	CharacterImage(ctx context.Context, botID string, kind media.CharacterImageKind) (*media.Ref, error)
	CharacterImages(ctx context.Context, kind media.CharacterImageKind) ([]media.CharacterResult, error)
	CharacterVideo(ctx context.Context, botID string, status media.StatusFunc) (*media.Ref, error)
}

// Credentials accepts a user-supplied API key. *gemini.Provider implements it.
type Credentials interface {
	SetCredential(apiKey string)
}

// MediaFiles resolves stored artifacts. *media.Store implements it.
type MediaFiles interface {
	Get(ctx context.Context, id string) (*media.Artifact, error)
	Path(a *media.Artifact) string
	Ping(ctx context.Context) error
}

// ConsoleLog lists diagnostic entries. *console.Console implements it.
type ConsoleLog interface {
	Entries() []console.Entry
}

// Deps are the collaborators of a Server.
type Deps struct {
	Session     Session
	Credentials Credentials
	Media       MediaFiles
	Console     ConsoleLog
}

// Server is the browser-facing HTTP server.
type Server struct {
	cfg         config.HTTPConfig
	session     Session
	credentials Credentials
	files       MediaFiles
	console     ConsoleLog
	log         *slog.Logger

	// base is the parent of every dispatch context. Dispatches are detached
	// from the request so a closed browser tab cannot cancel a turn, but
	// they still stop on shutdown.
	base context.Context
}

// NewServer creates a Server.
func NewServer(cfg config.HTTPConfig, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		session:     deps.Session,
		credentials: deps.Credentials,
		files:       deps.Media,
		console:     deps.Console,
		log:         log.With("component", "http"),
		base:        context.Background(),
	}
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/messages", s.handleMessages)
	mux.HandleFunc("POST /api/messages", s.handleSend)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)

	mux.HandleFunc("GET /api/bots", s.handleBots)
	mux.HandleFunc("GET /api/bots/{id}", s.handleBot)
	mux.HandleFunc("GET /api/bots/{id}/export", s.handleBotExport)
	mux.HandleFunc("POST /api/bots/{id}/media/{kind}", s.handleBotMedia)
	mux.HandleFunc("POST /api/bots/media/{kind}", s.handleRosterMedia)
	mux.HandleFunc("GET /api/related", s.handleRelated)
	mux.HandleFunc("GET /api/teams", s.handleTeams)
	mux.HandleFunc("GET /api/teams/{id}", s.handleTeam)
	mux.HandleFunc("GET /api/teams/{id}/export", s.handleTeamExport)

	mux.HandleFunc("GET /api/console", s.handleConsole)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("POST /api/credential", s.handleCredential)
	mux.HandleFunc("GET /api/export/chat", s.handleExportChat)

	mux.HandleFunc("GET "+media.URLPrefix+"{id}", s.handleMediaFile)

	return WithCORS(logger.HTTPMiddleware(s.log)(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.base = ctx

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return <-errCh
}

// dispatchContext detaches a long-running dispatch from its request.
// Text turns are bounded by the turn timeout; video jobs are bounded by the
// poller's own budget.
func (s *Server) dispatchContext(bounded bool) (context.Context, context.CancelFunc) {
	if bounded && s.cfg.TurnTimeout > 0 {
		return context.WithTimeout(s.base, s.cfg.TurnTimeout)
	}
	return context.WithCancel(s.base)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.files != nil {
		if err := s.files.Ping(ctx); err != nil {
			s.log.WarnContext(ctx, "Health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, err, nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
