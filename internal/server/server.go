/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the export pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /version
//	POST /api/export?format=docx|pdf|txt      body: export.Request, returns the attachment
//	POST /api/filename?format=...             body: export.Request, returns {"filename": ...}
//	GET  /api/projects                        when a ProjectStore is configured
//	GET  /api/projects/{id}/bundle
//	POST /api/projects/{id}/export?format=&season=&episode=
//
// With a Secret set, every /api route requires a bearer token from SignToken.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scenewriter/internal/backend"
	"scenewriter/internal/domain"
	"scenewriter/internal/export"
	"scenewriter/internal/layout"
	applog "scenewriter/internal/log"
	"scenewriter/internal/storage"
	"scenewriter/internal/version"
)

// Config configures a Server.
type Config struct {
	Addr    string // e.g. ":8080"
	Secret  string // empty disables auth
	Author  string // default author for project exports
	Style   *layout.HouseStyle
	Store   ProjectStore
	MaxBody int64 // request body limit in bytes; 0 means 8 MiB
	Now     func() time.Time
}

// Server is the HTTP front of the exporter.
type Server struct {
	cfg    Config
	log    *slog.Logger
	router chi.Router
}

// New builds a Server and its routes.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 8 << 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{cfg: cfg, log: applog.WithComponent("server")}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	})

	r.Route("/api", func(r chi.Router) {
		if s.cfg.Secret != "" {
			r.Use(requireToken(s.cfg.Secret, s.cfg.Now))
		}
		r.Use(middleware.RequestSize(s.cfg.MaxBody))
		r.Post("/export", s.handleExport)
		r.Post("/filename", s.handleFilename)
		if s.cfg.Store != nil {
			r.Get("/projects", s.handleListProjects)
			r.Get("/projects/{id}/bundle", s.handleBundle)
			r.Post("/projects/{id}/export", s.handleProjectExport)
		}
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr, "auth", s.cfg.Secret != "", "projects", s.cfg.Store != nil)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		ctx := applog.ContextWith(r.Context(), slog.String("req", middleware.GetReqID(r.Context())))
		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)
		s.log.DebugContext(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"dur", time.Since(start))
	})
}

func (s *Server) options(r *http.Request) (export.Options, error) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{Format: f, Style: s.cfg.Style, Now: s.cfg.Now}, nil
}

func decodeRequest(r *http.Request) (export.Request, error) {
	var req export.Request
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return export.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	art, err := export.Export(req, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeArtifact(w, art)
}

func (s *Server) handleFilename(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	name, err := export.FileNameFor(req, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"filename": name})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.cfg.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []backend.ProjectSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) loadBundle(w http.ResponseWriter, r *http.Request) (*domain.Bundle, bool) {
	b, err := s.cfg.Store.LoadBundle(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, backend.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, err)
		return nil, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return b, true
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	if b, ok := s.loadBundle(w, r); ok {
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *Server) handleProjectExport(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, ok := s.loadBundle(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	sel, err := b.Scope(q.Get("season"), q.Get("episode"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownSeason) || errors.Is(err, domain.ErrUnknownEpisode) || errors.Is(err, domain.ErrEpisodeNotInSeason) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	author := q.Get("author")
	if author == "" {
		author = s.cfg.Author
	}
	art, err := export.Export(export.RequestFromSelection(b, sel, author, s.cfg.Now()), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec, ok := s.cfg.Store.(ExportRecorder); ok {
		entry := storage.ExportRecord{
			Format:   string(art.Format),
			Filename: art.Filename,
			Scenes:   art.Scenes,
			Bytes:    int64(len(art.Data)),
			SHA256:   storage.Checksum(art.Data),
		}
		if sel.Season != nil {
			entry.SeasonID = sel.Season.ID
		}
		if sel.Episode != nil {
			entry.EpisodeID = sel.Episode.ID
		}
		if err := rec.RecordExport(r.Context(), b.Project.ID, entry); err != nil {
			s.log.WarnContext(r.Context(), "record export failed", "project", b.Project.ID, "err", err)
		}
	}
	writeArtifact(w, art)
}

func writeArtifact(w http.ResponseWriter, art *export.Artifact) {
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
