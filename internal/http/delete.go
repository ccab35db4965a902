package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/nebula-panel/static-delete/internal/config"
	"github.com/nebula-panel/static-delete/internal/logging"
	"github.com/nebula-panel/static-delete/internal/models"
	"github.com/nebula-panel/static-delete/internal/rootpath"
	"github.com/nebula-panel/static-delete/internal/security"
	"github.com/nebula-panel/static-delete/internal/vars"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const auditTimeout = 5 * time.Second

// staticDelete returns the content handler for loc. GET and HEAD both delete
// the file; everything else is refused before the filename is evaluated.
func (s *Server) staticDelete(loc Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status := s.deleteAndRespond(w, r, loc); status != http.StatusOK {
			w.WriteHeader(status)
		}
	}
}

// deleteAndRespond returns http.StatusOK once the success page has been
// sent, or the status the caller should reply with.
func (s *Server) deleteAndRespond(w http.ResponseWriter, r *http.Request, loc Location) int {
	log := hlog.FromRequest(r)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		return http.StatusMethodNotAllowed
	}

	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = config.DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if _, err := io.Copy(io.Discard, r.Body); err != nil {
		log.Warn().Err(err).Msg("discard request body")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	}

	filename, err := loc.Filename(r)
	if err != nil {
		if errors.Is(err, vars.ErrInvalidHost) {
			log.Info().Err(err).Msg("client sent invalid host header")
			return http.StatusBadRequest
		}
		log.Error().Err(err).Str("location", loc.Pattern).Msg("evaluate static_delete")
		return http.StatusInternalServerError
	}

	if err := security.ValidateFilename(filename); err != nil {
		log.Info().Err(err).Str("filename", filename).Msg("filename rejected")
		if errors.Is(err, security.ErrTraversal) {
			return http.StatusForbidden
		}
		return http.StatusNotFound
	}

	res, err := loc.Root.Resolve(r, filename)
	if err != nil {
		switch {
		case errors.Is(err, vars.ErrInvalidHost):
			log.Info().Err(err).Msg("client sent invalid host header")
			return http.StatusBadRequest
		case errors.Is(err, rootpath.ErrUnsafeRoot):
			log.Warn().Err(err).Str("location", loc.Pattern).Msg("root leaves its parent")
			return http.StatusForbidden
		case errors.Is(err, rootpath.ErrAliasUnsupported):
			logging.Alert(log).Str("location", loc.Pattern).Msg(`"alias" is not supported by static delete`)
		default:
			log.Error().Err(err).Str("location", loc.Pattern).Msg("map filename to path")
		}
		return http.StatusInternalServerError
	}
	log.Debug().Str("path", res.Path).Msg("static delete filename")

	if loc.Strict && s.contain != nil {
		if err := s.contain(res.Root, res.Path); err != nil {
			log.Warn().Err(err).Str("path", res.Path).Str("root", res.Root).Msg("path leaves root")
			return http.StatusForbidden
		}
	}

	if err := s.deleter.Delete(r.Context(), res.Path); err != nil {
		logging.Crit(log).Err(err).Str("path", res.Path).Msg("unlink failed")
		return http.StatusNotFound
	}

	s.recordDeletion(r, log, loc, res.Path)

	if err := writePage(w, r, http.StatusOK, successPage(res.Path)); err != nil {
		log.Warn().Err(err).Str("path", res.Path).Msg("send response")
	}
	return http.StatusOK
}

// recordDeletion writes the audit record. The file is already gone, so
// failures are only logged.
func (s *Server) recordDeletion(r *http.Request, log *zerolog.Logger, loc Location, path string) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	defer cancel()
	_, err := s.audit.RecordDeletion(ctx, models.Deletion{
		Location:   loc.Pattern,
		Path:       path,
		Method:     r.Method,
		RemoteAddr: r.RemoteAddr,
		RequestID:  chimw.GetReqID(r.Context()),
		DryRun:     s.cfg.DryRun,
	})
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("record deletion")
	}
}
