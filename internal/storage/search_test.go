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
	"strings"
	"testing"
	"time"
)

func TestSearch(t *testing.T) {
	root := t.TempDir()
	if _, err := InitProject(root, sampleBundle()); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	ctx := context.Background()

	res, err := Search(ctx, root, SearchQuery{Text: "kitchen*"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected title and content matches, got %+v", res)
	}
	if res[0].SceneID != "sc1" || res[1].SceneID != "sc2" {
		t.Fatalf("results must follow timeline order: %+v", res)
	}
	if !strings.Contains(res[1].Snippet, "[kitchens]") {
		t.Fatalf("snippet should mark the match: %q", res[1].Snippet)
	}

	res, err = Search(ctx, root, SearchQuery{Character: "ana"})
	if err != nil {
		t.Fatalf("Search character: %v", err)
	}
	if len(res) != 1 || res[0].SceneID != "sc2" {
		t.Fatalf("character filter: %+v", res)
	}

	res, err = Search(ctx, root, SearchQuery{EpisodeID: "e1", Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search paginate: %v", err)
	}
	if len(res) != 1 || res[0].SceneID != "sc2" {
		t.Fatalf("pagination: %+v", res)
	}

	res, err = Search(ctx, root, SearchQuery{SeasonID: "nope"})
	if err != nil {
		t.Fatalf("Search season: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("unknown season should match nothing: %+v", res)
	}

	if _, err := Search(ctx, " ", SearchQuery{}); err == nil {
		t.Fatalf("expected error for blank root")
	}
}

func TestLikeContainsEscapes(t *testing.T) {
	if got := likeContains("50%_off"); got != `%50\%\_off%` {
		t.Fatalf("likeContains = %q", got)
	}
}

func TestExportHistory(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	first, err := RecordExport(ctx, root, ExportRecord{
		CreatedAt: base, Format: "docx", Filename: "script_A_2026-10-17.docx",
		Scenes: 3, Bytes: 1234, SHA256: Checksum([]byte("a")),
	})
	if err != nil {
		t.Fatalf("RecordExport: %v", err)
	}
	if len(first.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", first.ID)
	}
	if _, err := RecordExport(ctx, root, ExportRecord{
		CreatedAt: base.Add(time.Hour), Format: "pdf", Filename: "script_A_2026-10-17.pdf", EpisodeID: "e1",
	}); err != nil {
		t.Fatalf("RecordExport: %v", err)
	}
	if _, err := RecordExport(ctx, root, ExportRecord{Format: "pdf"}); err == nil {
		t.Fatalf("expected error for missing filename")
	}

	recs, err := ListExports(ctx, root, 10)
	if err != nil {
		t.Fatalf("ListExports: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Format != "pdf" || recs[0].EpisodeID != "e1" {
		t.Fatalf("newest first: %+v", recs[0])
	}
	if recs[1].ID != first.ID || !recs[1].CreatedAt.Equal(base) || recs[1].Bytes != 1234 || recs[1].Scenes != 3 {
		t.Fatalf("round trip mismatch: %+v", recs[1])
	}
	if recs[1].SHA256 != "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb" {
		t.Fatalf("checksum mismatch: %s", recs[1].SHA256)
	}

	recs, err = ListExports(ctx, root, 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("limit: %v %d", err, len(recs))
	}
}
