/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"scenewriter/internal/storage"
)

// SearchPG runs q against the Postgres scenes table using its tsvector column
// and maps rows to storage.SearchResult so local and remote results line up.
// Text is matched with plainto_tsquery rather than FTS5 syntax.
func SearchPG(ctx context.Context, db *sql.DB, projectID string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	b.WriteString("SELECT s.id, s.title, s.season_id, s.episode_id, s.ord, ")
	if strings.TrimSpace(q.Text) != "" {
		tq := place(q.Text)
		b.WriteString("COALESCE(ts_headline('simple', s.content, plainto_tsquery('simple', " + tq + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM scenes s WHERE s.project_id = " + place(projectID))
		b.WriteString(" AND s.search_vector @@ plainto_tsquery('simple', " + tq + ")")
	} else {
		b.WriteString("'' FROM scenes s WHERE s.project_id = " + place(projectID))
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		b.WriteString(" AND ('|' || s.cues || '|') LIKE " + place(likeContains("|"+strings.ToUpper(c)+"|")))
	}
	if q.SeasonID != "" {
		b.WriteString(" AND s.season_id = " + place(q.SeasonID))
	}
	if q.EpisodeID != "" {
		b.WriteString(" AND s.episode_id = " + place(q.EpisodeID))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY s.ord, s.id")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.SceneID, &r.Title, &r.SeasonID, &r.EpisodeID, &r.Order, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Search is SearchPG on the source's connection.
func (s *Source) Search(ctx context.Context, projectID string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	return SearchPG(ctx, s.db, projectID, q)
}

// likeContains escapes s for a LIKE pattern matching anywhere. Postgres
// uses backslash as the default LIKE escape.
func likeContains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
