// Package web serves the upload form, the question box and the transcript.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"pdfchat/internal/config"
	"pdfchat/internal/models"
	"pdfchat/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

const sessionCookie = "pdfchat_session"

// Pipeline is the question-answering flow behind the pages.
type Pipeline interface {
	Ingest(ctx context.Context, sess *session.Session, filename string, data io.Reader) (int, error)
	Ask(ctx context.Context, sess *session.Session, question string) (*models.Turn, error)
}

type Server struct {
	pipeline  Pipeline
	sessions  *session.Store
	cfg       *config.Config
	templates *template.Template
}

func NewServer(pipeline Pipeline, sessions *session.Store, cfg *config.Config) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{
		pipeline:  pipeline,
		sessions:  sessions,
		cfg:       cfg,
		templates: tmpl,
	}, nil
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Post("/ask", s.handleAsk)

	r.Route("/api", func(r chi.Router) {
		r.Get("/history", s.handleAPIHistory)
		r.Post("/upload", s.handleAPIUpload)
		r.Post("/ask", s.handleAPIAsk)
	})
	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	log.Info().Str("addr", s.cfg.Server.Addr).Msg("Server starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func accessLog(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		event := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			event = hlog.FromRequest(r).Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Handled HTTP request")
	})(next)
}

// session returns the caller's session, issuing a cookie for new ones.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	sess := s.sessions.GetOrCreate(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("session", sess.ID)
	})
	return sess
}
