package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog/hlog"

	"pdfchat/internal/models"
	"pdfchat/internal/parser"
	"pdfchat/internal/rag"
	"pdfchat/internal/session"
)

const uploadField = "document"

type pageData struct {
	Title      string
	Subtitle   string
	Accept     string
	Document   string
	Transcript []renderedTurn
	Error      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, s.session(w, r), http.StatusOK, nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if _, err := s.ingestUpload(w, r, sess); err != nil {
		s.renderPage(w, r, sess, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if _, err := s.pipeline.Ask(r.Context(), sess, r.FormValue("question")); err != nil {
		s.renderPage(w, r, sess, statusFor(err), err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type uploadResponse struct {
	Document string `json:"document"`
	Chunks   int    `json:"chunks"`
}

type askRequest struct {
	Question string `json:"question"`
}

type sourceResponse struct {
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	ChunkID    int     `json:"chunk_id"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
}

type askResponse struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Sources  []sourceResponse `json:"sources"`
	Turns    int              `json:"turns"`
}

type historyResponse struct {
	Document string        `json:"document"`
	History  []models.Turn `json:"history"`
}

func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	chunks, err := s.ingestUpload(w, r, sess)
	if err != nil {
		s.respondError(w, r, statusFor(err), err)
		return
	}
	s.respondJSON(w, http.StatusOK, uploadResponse{
		Document: sess.DocumentID(),
		Chunks:   chunks,
	})
}

func (s *Server) handleAPIAsk(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	turn, err := s.pipeline.Ask(r.Context(), sess, req.Question)
	if err != nil {
		s.respondError(w, r, statusFor(err), err)
		return
	}
	if turn == nil {
		s.respondError(w, r, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	resp := askResponse{
		Question: turn.Question,
		Answer:   turn.Answer,
		Sources:  make([]sourceResponse, 0, len(turn.Sources)),
		Turns:    len(sess.History()),
	}
	for _, src := range turn.Sources {
		resp.Sources = append(resp.Sources, sourceResponse{
			Source:     src.Chunk.SourceFilename,
			Page:       src.Chunk.PageNumber,
			ChunkID:    src.Chunk.ChunkID,
			Content:    src.Chunk.Content,
			Similarity: src.Similarity,
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.respondJSON(w, http.StatusOK, historyResponse{
		Document: sess.DocumentID(),
		History:  sess.History(),
	})
}

func (s *Server) ingestUpload(w http.ResponseWriter, r *http.Request, sess *session.Session) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadSize)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return 0, &requestError{fmt.Errorf("missing %q file: %w", uploadField, err)}
	}
	defer file.Close()

	if !s.cfg.RAG.AllowsExtension(filepath.Ext(header.Filename)) {
		return 0, fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, header.Filename)
	}
	return s.pipeline.Ingest(r.Context(), sess, header.Filename, file)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, sess *session.Session, status int, pageErr error) {
	data := pageData{
		Title:      s.cfg.Server.Title,
		Subtitle:   s.cfg.Server.Subtitle,
		Accept:     acceptList(s.cfg.RAG.AllowedExtensions),
		Document:   sess.DocumentID(),
		Transcript: renderTranscript(sess.History()),
	}
	if pageErr != nil {
		hlog.FromRequest(r).Error().Err(pageErr).Msg("Request failed")
		data.Error = pageErr.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to render page")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("Request failed")
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}

type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func statusFor(err error) int {
	var reqErr *requestError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, rag.ErrNoDocument):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
