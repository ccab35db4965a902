package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/nebula-panel/static-delete/internal/buildinfo"
	"github.com/nebula-panel/static-delete/internal/config"
	"github.com/nebula-panel/static-delete/internal/fsdelete"
	"github.com/nebula-panel/static-delete/internal/models"
	"github.com/nebula-panel/static-delete/internal/security"
	"github.com/nebula-panel/static-delete/internal/vars"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Recorder persists deletion audit records.
type Recorder interface {
	RecordDeletion(ctx context.Context, d models.Deletion) (models.Deletion, error)
	ListDeletions(ctx context.Context, limit int) ([]models.Deletion, error)
}

type Server struct {
	cfg       config.Config
	log       zerolog.Logger
	locations []Location
	deleter   fsdelete.Deleter
	audit     Recorder
	contain   func(root, path string) error
}

func NewServer(cfg config.Config, log zerolog.Logger, locations []Location, deleter fsdelete.Deleter) *Server {
	s := &Server{cfg: cfg, log: log, locations: locations, deleter: deleter}
	// Symlinks can only be evaluated where the files live.
	if cfg.Backend == "" || cfg.Backend == config.BackendLocal {
		s.contain = security.CheckParentEscape
	}
	return s
}

// WithAudit enables the deletion audit log and the /v1/deletions listing.
func (s *Server) WithAudit(r Recorder) *Server {
	s.audit = r
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(s.log))
	r.Use(requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	r.Use(validHost)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": buildinfo.Name})
	})
	if s.audit != nil {
		r.Get("/v1/deletions", s.handleListDeletions)
	}

	for _, loc := range s.locations {
		r.Handle(loc.Pattern, s.staticDelete(loc))
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := listen(s.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.HTTPAddr).Bool("dry_run", s.cfg.DryRun).Int("locations", len(s.locations)).Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func listen(addr string) (net.Listener, error) {
	path, ok := strings.CutPrefix(addr, "unix:")
	if !ok {
		return net.Listen("tcp", addr)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o660); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

func (s *Server) handleListDeletions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	list, err := s.audit.ListDeletions(r.Context(), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list deletions")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot list deletions"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletions": list})
}

// validHost refuses requests whose Host header cannot be a single host name,
// since $host may end up in a root directory. Requests without a Host header
// pass; $host fails for them on evaluation.
func validHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Host != "" {
			if _, err := vars.Host(r.Host); err != nil {
				hlog.FromRequest(r).Info().Err(err).Msg("client sent invalid host header")
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
