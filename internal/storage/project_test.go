/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scenewriter/internal/domain"
)

func sampleBundle() domain.Bundle {
	b := NewBundle("Night Shift", domain.GroupingSeasonsEpisode, time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	b.Seasons = []domain.Season{{ID: "s1", ProjectID: b.Project.ID, Title: "Arrivals", Order: 0}}
	b.Episodes = []domain.Episode{{ID: "e1", ProjectID: b.Project.ID, SeasonID: "s1", Title: "Pilot", Order: 0}}
	b.Scenes = []domain.Scene{
		{ID: "sc1", ProjectID: b.Project.ID, SeasonID: "s1", EpisodeID: "e1", Title: "Kitchen", Order: 0,
			Loc: domain.Interior, Tod: domain.Day,
			Content: "He enters.\n\n@:JOE\nHi.\n(smiles)\nBye.\n:@"},
		{ID: "sc2", ProjectID: b.Project.ID, SeasonID: "s1", EpisodeID: "e1", Title: "Roof", Order: 1,
			Loc: domain.Exterior, Tod: domain.Night,
			Content: "Wind howls over the parapet.\n@:ANA\nToo cold for kitchens.\n:@"},
	}
	return b
}

func TestInitProjectCreatesStructureAndBundle(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleBundle())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	if ph.BundlePath != filepath.Join(root, BundleFileName) {
		t.Fatalf("unexpected bundle path %q", ph.BundlePath)
	}
	data, err := os.ReadFile(ph.BundlePath)
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	var got domain.Bundle
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal bundle: %v", err)
	}
	if got.Project.Name != "Night Shift" || len(got.Scenes) != 2 {
		t.Fatalf("bundle mismatch: %+v", got.Project)
	}
	for _, d := range []string{ExportsDirName, StylesDirName, BackupsDirName} {
		if fi, err := os.Stat(filepath.Join(root, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", d)
		}
	}
	if _, err := os.Stat(IndexPath(root)); err != nil {
		t.Fatalf("index missing: %v", err)
	}
}

func TestNewBundleDefaults(t *testing.T) {
	b := NewBundle("X", "", time.Now())
	if b.Project.ID == "" {
		t.Fatalf("expected generated project id")
	}
	if b.Project.Grouping != domain.GroupingNone {
		t.Fatalf("grouping = %q, want none", b.Project.Grouping)
	}
	if b.Scenes == nil || b.Seasons == nil || b.Episodes == nil {
		t.Fatalf("collections must be empty, not nil")
	}
	if NewBundle("X", "", time.Now()).Project.ID == b.Project.ID {
		t.Fatalf("project ids must be unique")
	}
}

func TestOpenRoundTrip(t *testing.T) {
	root := t.TempDir()
	if _, err := InitProject(root, sampleBundle()); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ph, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if ph.Bundle.Project.Grouping != domain.GroupingSeasonsEpisode {
		t.Fatalf("grouping lost: %q", ph.Bundle.Project.Grouping)
	}
	if ph.Bundle.Scenes[1].Loc != domain.Exterior || ph.Bundle.Scenes[1].Tod != domain.Night {
		t.Fatalf("scene tags lost: %+v", ph.Bundle.Scenes[1])
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleBundle())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ph.Bundle.Project.Name = "Renamed"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	baks, err := Backups(root)
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(baks) != 1 {
		t.Fatalf("expected 1 backup, got %d", len(baks))
	}
	data, _ := os.ReadFile(baks[0])
	if !strings.Contains(string(data), "Night Shift") {
		t.Fatalf("backup should hold the previous bundle")
	}
	ents, _ := os.ReadDir(root)
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestOpenFallsBackToLatestBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleBundle())
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if err := Save(ph); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(ph.BundlePath, []byte("{ not json"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open should recover from backup: %v", err)
	}
	if got.Bundle.Project.Name != "Night Shift" {
		t.Fatalf("unexpected recovered name %q", got.Bundle.Project.Name)
	}

	if err := os.Remove(ph.BundlePath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := Open(root); err != nil {
		t.Fatalf("Open should recover a missing bundle: %v", err)
	}
}

func TestOpenMissingProject(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestSaveRejectsInvalidBundle(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleBundle())
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ph.Bundle.Project.Grouping = "by-act"
	ph.Bundle.Scenes[0].Loc = "INSIDE"
	err = Save(ph)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Problems) < 2 {
		t.Fatalf("expected a problem per violation, got %v", verr.Problems)
	}
	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.Bundle.Project.Grouping != domain.GroupingSeasonsEpisode {
		t.Fatalf("invalid bundle must not reach disk")
	}
}

func TestInitProjectRequiresRoot(t *testing.T) {
	if _, err := InitProject("  ", sampleBundle()); err == nil {
		t.Fatalf("expected error for blank root")
	}
	if err := Save(nil); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}

func TestCrashSnapshotIsNotABackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleBundle())
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	path, err := CrashSnapshot(ph)
	if err != nil {
		t.Fatalf("CrashSnapshot: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if b, err := DecodeBundle(data); err != nil || b.Project.Name != "Night Shift" {
		t.Fatalf("snapshot not a bundle: %v", err)
	}
	baks, _ := Backups(root)
	for _, p := range baks {
		if p == path {
			t.Fatalf("crash snapshot listed as backup")
		}
	}
	if _, err := CrashSnapshot(nil); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}
