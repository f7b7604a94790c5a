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
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openRaw(t *testing.T, root string) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", filepath.ToSlash(IndexPath(root)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestIndexInitCreatesWALAndMetaVersion(t *testing.T) {
	root := t.TempDir()
	if _, err := InitProject(root, sampleBundle()); err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	db := openRaw(t, root)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var schema int
	var app string
	if err := db.QueryRowContext(ctx, "SELECT schema, app FROM version WHERE id=1").Scan(&schema, &app); err != nil {
		t.Fatalf("read version row: %v", err)
	}
	if schema != schemaVersion || app == "" {
		t.Fatalf("unexpected version row schema=%d app=%q", schema, app)
	}
	var scenes int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scenes").Scan(&scenes); err != nil {
		t.Fatalf("count scenes: %v", err)
	}
	if scenes != 2 {
		t.Fatalf("expected 2 indexed scenes, got %d", scenes)
	}
}

func TestSceneCues(t *testing.T) {
	got := SceneCues("@:joe\nHi\n:@\n@:\nx\n:@\n@:Ana\n@:Bob\n:@\n@:Joe\nagain\n:@\nplain")
	if got != "JOE|ANA" {
		t.Fatalf("SceneCues = %q", got)
	}
	if SceneCues("no dialogue") != "" {
		t.Fatalf("expected no cues")
	}
}

func TestSaveRefreshesIndex(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleBundle())
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ph.Bundle.Scenes = ph.Bundle.Scenes[:1]
	if err := Save(ph); err != nil {
		t.Fatalf("Save: %v", err)
	}
	res, err := Search(context.Background(), root, SearchQuery{Text: "parapet"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("removed scene still indexed: %+v", res)
	}
}

func TestDetectAndRebuildIndex_OnCorruption(t *testing.T) {
	root := t.TempDir()
	b := sampleBundle()
	if _, err := InitProject(root, b); err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	if err := os.WriteFile(IndexPath(root), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(IndexPath(root) + suffix)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rebuilt, err := DetectAndRebuildIndex(ctx, root, b)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	res, err := Search(ctx, root, SearchQuery{Text: "kitchen"})
	if err != nil || len(res) == 0 {
		t.Fatalf("rebuilt index should be searchable: %v %+v", err, res)
	}
	entries, _ := os.ReadDir(filepath.Join(root, IndexDirName, "backups"))
	if len(entries) == 0 {
		t.Fatalf("expected backup of the corrupt index")
	}
}

func TestDetectAndRebuildIndex_HealthyIsNoop(t *testing.T) {
	root := t.TempDir()
	b := sampleBundle()
	if _, err := InitProject(root, b); err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	rebuilt, err := DetectAndRebuildIndex(context.Background(), root, b)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if rebuilt {
		t.Fatalf("healthy index must not be rebuilt")
	}
}

func TestRebuildIndexKeepsExportHistory(t *testing.T) {
	root := t.TempDir()
	b := sampleBundle()
	if _, err := InitProject(root, b); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ctx := context.Background()
	if _, err := RecordExport(ctx, root, ExportRecord{Format: "docx", Filename: "a.docx"}); err != nil {
		t.Fatalf("RecordExport: %v", err)
	}
	if err := RebuildIndex(ctx, root, b); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	recs, err := ListExports(ctx, root, 0)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("export history lost on rebuild: %d", len(recs))
	}
}

func TestDetectAndRebuildIndex_RefillsStaleScenes(t *testing.T) {
	root := t.TempDir()
	b := sampleBundle()
	if _, err := InitProject(root, b); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ctx := context.Background()
	if _, err := RecordExport(ctx, root, ExportRecord{Format: "txt", Filename: "a.txt"}); err != nil {
		t.Fatalf("RecordExport: %v", err)
	}

	// bundle.json edited by hand: the index still holds the old text
	b.Scenes[0].Content = "A lighthouse keeper sleeps."
	rebuilt, err := DetectAndRebuildIndex(ctx, root, b)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("stale index must be refilled")
	}
	res, err := Search(ctx, root, SearchQuery{Text: "lighthouse"})
	if err != nil || len(res) != 1 {
		t.Fatalf("refilled index should find the new text: %v %+v", err, res)
	}
	recs, err := ListExports(ctx, root, 0)
	if err != nil || len(recs) != 1 {
		t.Fatalf("refill must keep the export history: %v %d", err, len(recs))
	}
	if again, _ := DetectAndRebuildIndex(ctx, root, b); again {
		t.Fatalf("second check should be a no-op")
	}
}

func TestScenesDigestTracksContent(t *testing.T) {
	b := sampleBundle()
	d1 := scenesDigest(b)
	b.Scenes[1].Order++
	if scenesDigest(b) == d1 {
		t.Fatalf("digest ignores scene order")
	}
}
