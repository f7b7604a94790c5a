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
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes a scene search.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT)
// over scene titles and content. Character restricts to scenes with a
// dialogue cue of that name. Limit/Offset paginate; Limit defaults to 100.
type SearchQuery struct {
	Text      string
	Character string
	SeasonID  string
	EpisodeID string
	Limit     int
	Offset    int
}

// SearchResult is a single matching scene. Snippet marks matches with [ ]
// when Text is set.
type SearchResult struct {
	SceneID   string
	Title     string
	SeasonID  string
	EpisodeID string
	Order     int
	Snippet   string
}

// Search runs q against the scene index. Without Text it falls back to a
// plain scan with the filters applied, in timeline order.
func Search(ctx context.Context, projectRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT s.scene_id, s.title, s.season_id, s.episode_id, s.ord, snippet(fts_scenes, 1, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_scenes JOIN scenes s ON fts_scenes.rowid = s.doc_id\n")
		sb.WriteString("WHERE fts_scenes MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT s.scene_id, s.title, s.season_id, s.episode_id, s.ord, ''\n")
		sb.WriteString("FROM scenes s\nWHERE 1=1\n")
	}
	if s := strings.TrimSpace(q.Character); s != "" {
		sb.WriteString(" AND ('|' || s.cues || '|') LIKE ? ESCAPE '\\'\n")
		args = append(args, likeContains("|"+strings.ToUpper(s)+"|"))
	}
	if q.SeasonID != "" {
		sb.WriteString(" AND s.season_id = ?\n")
		args = append(args, q.SeasonID)
	}
	if q.EpisodeID != "" {
		sb.WriteString(" AND s.episode_id = ?\n")
		args = append(args, q.EpisodeID)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY s.ord, s.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.SceneID, &r.Title, &r.SeasonID, &r.EpisodeID, &r.Order, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// likeContains escapes s for a LIKE pattern matching anywhere.
func likeContains(s string) string {
	r := strings.NewReplacer(`%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
