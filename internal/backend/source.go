/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend connects scenewriter to shared infrastructure: a Postgres
// scene store that projects can be pulled from and pushed to, and an HTTP
// client for a remote scenewriter export server.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"scenewriter/internal/domain"
	applog "scenewriter/internal/log"
	"scenewriter/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrProjectNotFound is returned when the store has no project with the given id.
var ErrProjectNotFound = errors.New("project not found")

// Source is a Postgres-backed scene store.
type Source struct {
	db *sql.DB
}

// ProjectSummary is a row of ListProjects.
type ProjectSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grouping  string    `json:"grouping"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
	Scenes    int       `json:"scenes"`
}

// Open connects to dsn, pings it and applies pending migrations.
func Open(ctx context.Context, dsn string) (*Source, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Source{db: db}, nil
}

// DB exposes the underlying handle.
func (s *Source) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Source) Close() error { return s.db.Close() }

// Ping checks that the database is reachable.
func (s *Source) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ListProjects returns all projects, most recently updated first.
func (s *Source) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.id, p.name, p.grouping, p.updated_at, p.version,
		(SELECT count(*) FROM scenes sc WHERE sc.project_id = p.id)
		FROM projects p ORDER BY p.updated_at DESC, p.id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []ProjectSummary
	for rows.Next() {
		var p ProjectSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Grouping, &p.UpdatedAt, &p.Version, &p.Scenes); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadBundle reads a full project bundle. Rows come back in timeline order.
func (s *Source) LoadBundle(ctx context.Context, projectID string) (*domain.Bundle, error) {
	var b domain.Bundle
	var grouping string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, grouping, created_at, updated_at FROM projects WHERE id = $1`, projectID).
		Scan(&b.Project.ID, &b.Project.Name, &grouping, &b.Project.CreatedAt, &b.Project.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	case err != nil:
		return nil, fmt.Errorf("load project: %w", err)
	}
	b.Project.Grouping = domain.GroupingMode(grouping)
	b.Seasons = []domain.Season{}
	b.Episodes = []domain.Episode{}
	b.Scenes = []domain.Scene{}

	if err := s.loadSeasons(ctx, &b); err != nil {
		return nil, err
	}
	if err := s.loadEpisodes(ctx, &b); err != nil {
		return nil, err
	}
	if err := s.loadScenes(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Source) loadSeasons(ctx context.Context, b *domain.Bundle) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, ord, created_at, updated_at FROM seasons WHERE project_id = $1 ORDER BY ord, id`, b.Project.ID)
	if err != nil {
		return fmt.Errorf("load seasons: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		se := domain.Season{ProjectID: b.Project.ID}
		if err := rows.Scan(&se.ID, &se.Title, &se.Order, &se.CreatedAt, &se.UpdatedAt); err != nil {
			return fmt.Errorf("scan season: %w", err)
		}
		b.Seasons = append(b.Seasons, se)
	}
	return rows.Err()
}

func (s *Source) loadEpisodes(ctx context.Context, b *domain.Bundle) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, season_id, title, ord, created_at, updated_at FROM episodes WHERE project_id = $1 ORDER BY ord, id`, b.Project.ID)
	if err != nil {
		return fmt.Errorf("load episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		e := domain.Episode{ProjectID: b.Project.ID}
		if err := rows.Scan(&e.ID, &e.SeasonID, &e.Title, &e.Order, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return fmt.Errorf("scan episode: %w", err)
		}
		b.Episodes = append(b.Episodes, e)
	}
	return rows.Err()
}

func (s *Source) loadScenes(ctx context.Context, b *domain.Bundle) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, ord, season_id, episode_id, loc, tod, color, duration_min, versions::text, created_at, updated_at
		FROM scenes WHERE project_id = $1 ORDER BY ord, id`, b.Project.ID)
	if err != nil {
		return fmt.Errorf("load scenes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		sc := domain.Scene{ProjectID: b.Project.ID}
		var loc, tod, versions string
		if err := rows.Scan(&sc.ID, &sc.Title, &sc.Content, &sc.Order, &sc.SeasonID, &sc.EpisodeID, &loc, &tod, &sc.Color, &sc.DurationMin, &versions, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return fmt.Errorf("scan scene: %w", err)
		}
		sc.Loc = domain.Location(loc)
		sc.Tod = domain.TimeOfDay(tod)
		if versions != "" && versions != "[]" {
			if err := json.Unmarshal([]byte(versions), &sc.Versions); err != nil {
				return fmt.Errorf("decode versions of %s: %w", sc.ID, err)
			}
		}
		b.Scenes = append(b.Scenes, sc)
	}
	return rows.Err()
}

// PushBundle replaces the stored copy of b's project in one transaction and
// returns the new project version.
func (s *Source) PushBundle(ctx context.Context, b domain.Bundle) (int64, error) {
	if strings.TrimSpace(b.Project.ID) == "" {
		return 0, errors.New("project id is required")
	}
	l := applog.WithOperation(applog.WithComponent("backend"), "push")
	grouping := b.Project.Grouping
	if grouping == "" {
		grouping = domain.GroupingNone
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	err = tx.QueryRowContext(ctx, `INSERT INTO projects (id, name, grouping, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, grouping = EXCLUDED.grouping,
			updated_at = EXCLUDED.updated_at, version = projects.version + 1
		RETURNING version`,
		b.Project.ID, b.Project.Name, string(grouping), b.Project.CreatedAt.UTC(), b.Project.UpdatedAt.UTC()).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("upsert project: %w", err)
	}
	for _, table := range []string{"scenes", "episodes", "seasons"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE project_id = $1`, b.Project.ID); err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, se := range b.Seasons {
		if _, err := tx.ExecContext(ctx, `INSERT INTO seasons (id, project_id, title, ord, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			se.ID, b.Project.ID, se.Title, se.Order, se.CreatedAt.UTC(), se.UpdatedAt.UTC()); err != nil {
			return 0, fmt.Errorf("insert season %s: %w", se.ID, err)
		}
	}
	for _, e := range b.Episodes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO episodes (id, project_id, season_id, title, ord, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, b.Project.ID, e.SeasonID, e.Title, e.Order, e.CreatedAt.UTC(), e.UpdatedAt.UTC()); err != nil {
			return 0, fmt.Errorf("insert episode %s: %w", e.ID, err)
		}
	}
	for _, sc := range b.Scenes {
		versions := []byte("[]")
		if len(sc.Versions) > 0 {
			if versions, err = json.Marshal(sc.Versions); err != nil {
				return 0, fmt.Errorf("encode versions of %s: %w", sc.ID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO scenes (id, project_id, title, content, ord, season_id, episode_id, loc, tod, color, duration_min, versions, cues, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13, $14, $15)`,
			sc.ID, b.Project.ID, sc.Title, sc.Content, sc.Order, sc.SeasonID, sc.EpisodeID, string(sc.Loc), string(sc.Tod), sc.Color, sc.DurationMin,
			string(versions), storage.SceneCues(sc.Content), sc.CreatedAt.UTC(), sc.UpdatedAt.UTC()); err != nil {
			return 0, fmt.Errorf("insert scene %s: %w", sc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	l.Info("bundle pushed", "project", b.Project.ID, "version", version, "scenes", len(b.Scenes))
	return version, nil
}

// RecordExport appends an export to the shared export log.
func (s *Source) RecordExport(ctx context.Context, projectID string, rec storage.ExportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO export_log (project_id, format, filename, scenes, bytes, sha256, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		projectID, rec.Format, rec.Filename, rec.Scenes, rec.Bytes, rec.SHA256, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("log export: %w", err)
	}
	return nil
}

// applyMigrations applies embedded SQL migrations in filename order and
// records each applied version in schema_migrations.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	l := applog.WithOperation(applog.WithComponent("backend"), "migrate")
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		l.Info("applying migration", "file", fname)
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int64]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("select schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	applied := map[int64]bool{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	prefix, _, ok := strings.Cut(base, "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}
