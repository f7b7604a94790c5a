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
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExportRecord is one row of a project's export history.
type ExportRecord struct {
	ID        string
	CreatedAt time.Time
	Format    string
	Filename  string
	Path      string
	SeasonID  string
	EpisodeID string
	Scenes    int
	Bytes     int64
	SHA256    string
}

// Checksum returns the hex SHA-256 of data, as stored in ExportRecord.SHA256.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RecordExport appends rec to the export history of the project at
// projectRoot. An empty ID gets a fresh UUID and a zero CreatedAt is set to
// now. The stored record is returned.
func RecordExport(ctx context.Context, projectRoot string, rec ExportRecord) (ExportRecord, error) {
	if strings.TrimSpace(rec.Filename) == "" {
		return ExportRecord{}, errors.New("export filename is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return ExportRecord{}, err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, `INSERT INTO exports(id, created_at, format, filename, path, season_id, episode_id, scenes, bytes, sha256)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.Format(time.RFC3339Nano), rec.Format, rec.Filename, rec.Path,
		rec.SeasonID, rec.EpisodeID, rec.Scenes, rec.Bytes, rec.SHA256)
	if err != nil {
		return ExportRecord{}, fmt.Errorf("insert export: %w", err)
	}
	return rec, nil
}

// ListExports returns the most recent exports first. limit <= 0 means 50.
func ListExports(ctx context.Context, projectRoot string, limit int) ([]ExportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT id, created_at, format, filename, path, season_id, episode_id, scenes, bytes, sha256
		FROM exports ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()
	var out []ExportRecord
	for rows.Next() {
		var (
			r  ExportRecord
			ts string
		)
		if err := rows.Scan(&r.ID, &ts, &r.Format, &r.Filename, &r.Path, &r.SeasonID, &r.EpisodeID, &r.Scenes, &r.Bytes, &r.SHA256); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
