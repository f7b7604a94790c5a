/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scenewriter/internal/domain"
	applog "scenewriter/internal/log"
	"scenewriter/internal/script"
	"scenewriter/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds per-project derived data under the project root.
	IndexDirName  = ".scenewriter"
	IndexFileName = "index.sqlite"

	// schemaVersion is the layout of index.sqlite. Bump it together with a
	// new entry in indexMigrations.
	schemaVersion = 2

	indexTimeout = 10 * time.Second

	metaScenesDigest = "scenes_digest"
)

// indexMigrations upgrade an existing index one version at a time.
var indexMigrations = []struct {
	to    int
	stmts []string
}{
	{to: 2, stmts: []string{
		`CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_scope ON scenes(season_id, episode_id);`,
	}},
}

var bookkeepingDDL = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS version (
		id          INTEGER PRIMARY KEY CHECK(id=1),
		schema      INTEGER NOT NULL,
		app         TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS exports (
		id          TEXT    PRIMARY KEY,
		created_at  TEXT    NOT NULL,
		format      TEXT    NOT NULL,
		filename    TEXT    NOT NULL,
		path        TEXT    NOT NULL DEFAULT '',
		season_id   TEXT    NOT NULL DEFAULT '',
		episode_id  TEXT    NOT NULL DEFAULT '',
		scenes      INTEGER NOT NULL,
		bytes       INTEGER NOT NULL,
		sha256      TEXT    NOT NULL
	);`,
}

// sceneDDL creates the tables derived from bundle.json. RebuildIndex drops
// and recreates them; the bookkeeping tables survive.
var sceneDDL = []string{
	`CREATE TABLE IF NOT EXISTS scenes (
		doc_id     INTEGER PRIMARY KEY,
		scene_id   TEXT    NOT NULL UNIQUE,
		title      TEXT    NOT NULL,
		season_id  TEXT    NOT NULL DEFAULT '',
		episode_id TEXT    NOT NULL DEFAULT '',
		ord        INTEGER NOT NULL,
		cues       TEXT    NOT NULL DEFAULT '',
		text       TEXT    NOT NULL
	);`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS fts_scenes USING fts5(
		title,
		text,
		content='scenes',
		content_rowid='doc_id',
		tokenize = 'unicode61'
	);`,
	`CREATE TRIGGER IF NOT EXISTS scenes_ai AFTER INSERT ON scenes BEGIN
		INSERT INTO fts_scenes(rowid, title, text) VALUES (new.doc_id, new.title, new.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS scenes_ad AFTER DELETE ON scenes BEGIN
		INSERT INTO fts_scenes(fts_scenes, rowid, title, text) VALUES ('delete', old.doc_id, old.title, old.text);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS scenes_au AFTER UPDATE ON scenes BEGIN
		INSERT INTO fts_scenes(fts_scenes, rowid, title, text) VALUES ('delete', old.doc_id, old.title, old.text);
		INSERT INTO fts_scenes(rowid, title, text) VALUES (new.doc_id, new.title, new.text);
	END;`,
	`CREATE INDEX IF NOT EXISTS idx_scenes_scope ON scenes(season_id, episode_id);`,
	`CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(created_at);`,
}

var sceneDrops = []string{
	"DROP TRIGGER IF EXISTS scenes_ai;",
	"DROP TRIGGER IF EXISTS scenes_ad;",
	"DROP TRIGGER IF EXISTS scenes_au;",
	"DROP TABLE IF EXISTS fts_scenes;",
	"DROP TABLE IF EXISTS scenes;",
	"DELETE FROM meta WHERE key = '" + metaScenesDigest + "';",
}

// IndexPath returns the path of the project's SQLite index.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex opens the project's index in WAL mode, creating and
// migrating the schema as needed. Callers close the returned *sql.DB.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("root", projectRoot))
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(projectRoot)
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := prepareIndex(ctx, db); err != nil {
		_ = db.Close()
		l.Error("index not usable", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func prepareIndex(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}
	if err := execAll(ctx, db, bookkeepingDDL); err != nil {
		return fmt.Errorf("create bookkeeping tables: %w", err)
	}
	cur, err := stampVersion(ctx, db)
	if err != nil {
		return err
	}
	if err := execAll(ctx, db, sceneDDL); err != nil {
		return fmt.Errorf("create scene tables: %w", err)
	}
	return migrateIndex(ctx, db, cur)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execAll(ctx context.Context, db execer, stmts []string) error {
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// stampVersion records the running app version and returns the stored schema.
// A fresh index starts at schemaVersion.
func stampVersion(ctx context.Context, db *sql.DB) (int, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`,
			schemaVersion, version.String(), now, now)
		if err != nil {
			return 0, fmt.Errorf("insert version: %w", err)
		}
		return schemaVersion, nil
	case err != nil:
		return 0, fmt.Errorf("read version: %w", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
		return 0, fmt.Errorf("update version: %w", err)
	}
	return cur, nil
}

// migrateIndex applies the migrations above cur. An index written by a newer
// release is left alone.
func migrateIndex(ctx context.Context, db *sql.DB, cur int) error {
	for _, m := range indexMigrations {
		if m.to <= cur {
			continue
		}
		err := withTx(ctx, db, func(tx *sql.Tx) error {
			if err := execAll(ctx, tx, m.stmts); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, m.to, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("index migration %d: %w", m.to, err)
		}
		cur = m.to
	}
	return nil
}

// DetectAndRebuildIndex repairs the index for b and reports whether it had to.
// A file that cannot be opened or fails quick_check is backed up under
// .scenewriter/backups and rebuilt, which starts a fresh export history. An
// index whose scenes no longer match b (bundle.json edited outside
// scenewriter) is refilled in place.
func DetectAndRebuildIndex(ctx context.Context, projectRoot string, b domain.Bundle) (bool, error) {
	path := IndexPath(projectRoot)
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		if rbErr := recreateIndex(ctx, projectRoot, b); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	var chk string
	healthy := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk) == nil && strings.EqualFold(strings.TrimSpace(chk), "ok")
	if !healthy {
		_ = db.Close()
		if err := recreateIndex(ctx, projectRoot, b); err != nil {
			return false, err
		}
		return true, nil
	}
	defer db.Close()

	var stored string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaScenesDigest).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("read scene digest: %w", err)
	}
	if stored == scenesDigest(b) {
		return false, nil
	}
	applog.WithComponent("storage").Info("scene index stale, refilling", slog.String("index", path))
	if err := replaceScenes(ctx, db, b); err != nil {
		return false, err
	}
	return true, nil
}

func recreateIndex(ctx context.Context, projectRoot string, b domain.Bundle) error {
	path := IndexPath(projectRoot)
	backupIndexFile(path)
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return RebuildIndex(ctx, projectRoot, b)
}

// backupIndexFile copies the index file into .scenewriter/backups.
func backupIndexFile(indexPath string) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return
	}
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	if os.MkdirAll(bdir, 0o755) != nil {
		return
	}
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), time.Now().Format("20060102-150405"))
	_ = os.WriteFile(filepath.Join(bdir, name), data, 0o644)
}

// UpdateIndex replaces the indexed scenes with those of b.
func UpdateIndex(ctx context.Context, projectRoot string, b domain.Bundle) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return replaceScenes(ctx, db, b)
}

// RebuildIndex drops the scene tables, recreates them and refills them from
// b. The export history is kept.
func RebuildIndex(ctx context.Context, projectRoot string, b domain.Bundle) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	err = withTx(ctx, db, func(tx *sql.Tx) error { return execAll(ctx, tx, sceneDrops) })
	if err != nil {
		return fmt.Errorf("drop scene tables: %w", err)
	}
	if err := execAll(ctx, db, sceneDDL); err != nil {
		return fmt.Errorf("create scene tables: %w", err)
	}
	return replaceScenes(ctx, db, b)
}

func replaceScenes(ctx context.Context, db *sql.DB, b domain.Bundle) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scenes;`); err != nil {
			return fmt.Errorf("clear scenes: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO scenes(scene_id, title, season_id, episode_id, ord, cues, text) VALUES(?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for _, sc := range b.Scenes {
			if _, err := stmt.ExecContext(ctx, sc.ID, sc.Title, sc.SeasonID, sc.EpisodeID, sc.Order, SceneCues(sc.Content), sc.Content); err != nil {
				return fmt.Errorf("insert scene %s: %w", sc.ID, err)
			}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			metaScenesDigest, scenesDigest(b))
		if err != nil {
			return fmt.Errorf("store scene digest: %w", err)
		}
		return nil
	})
}

// scenesDigest hashes the indexed fields of every scene in bundle order.
func scenesDigest(b domain.Bundle) string {
	h := sha256.New()
	for _, sc := range b.Scenes {
		for _, f := range []string{sc.ID, sc.Title, sc.SeasonID, sc.EpisodeID, strconv.Itoa(sc.Order), sc.Content} {
			h.Write([]byte(strconv.Itoa(len(f))))
			h.Write([]byte{':'})
			h.Write([]byte(f))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SceneCues lists the distinct upper-cased character cues of content,
// joined with "|".
func SceneCues(content string) string {
	seen := map[string]bool{}
	var cues []string
	for _, seg := range script.Segments(content) {
		if seg.Kind != script.SegmentDialogue {
			continue
		}
		cue := strings.ToUpper(seg.Cue)
		if !seen[cue] {
			seen[cue] = true
			cues = append(cues, cue)
		}
	}
	return strings.Join(cues, "|")
}
