/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"context"
	"fmt"
	"time"

	"scenewriter/internal/backend"
	"scenewriter/internal/domain"
	"scenewriter/internal/storage"
)

// ProjectStore supplies the bundles the /api/projects routes export.
// *backend.Source and DirStore implement it.
type ProjectStore interface {
	ListProjects(ctx context.Context) ([]backend.ProjectSummary, error)
	LoadBundle(ctx context.Context, projectID string) (*domain.Bundle, error)
}

// ExportRecorder is implemented by stores that keep an export history.
type ExportRecorder interface {
	RecordExport(ctx context.Context, projectID string, rec storage.ExportRecord) error
}

// DirStore serves the single project stored in a local directory.
type DirStore struct {
	Root string
}

func (d DirStore) open() (*domain.Bundle, error) {
	ph, err := storage.Open(d.Root)
	if err != nil {
		return nil, err
	}
	return &ph.Bundle, nil
}

// ListProjects returns the directory's project.
func (d DirStore) ListProjects(ctx context.Context) ([]backend.ProjectSummary, error) {
	b, err := d.open()
	if err != nil {
		return nil, err
	}
	updated := b.Project.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return []backend.ProjectSummary{{
		ID:        b.Project.ID,
		Name:      b.Project.Name,
		Grouping:  string(b.Project.Grouping),
		UpdatedAt: updated,
		Scenes:    len(b.Scenes),
	}}, nil
}

// LoadBundle returns the bundle when projectID matches the directory's project.
func (d DirStore) LoadBundle(ctx context.Context, projectID string) (*domain.Bundle, error) {
	b, err := d.open()
	if err != nil {
		return nil, err
	}
	if b.Project.ID != projectID {
		return nil, fmt.Errorf("%w: %s", backend.ErrProjectNotFound, projectID)
	}
	return b, nil
}

// RecordExport appends rec to the directory's export history.
func (d DirStore) RecordExport(ctx context.Context, projectID string, rec storage.ExportRecord) error {
	_, err := storage.RecordExport(ctx, d.Root, rec)
	return err
}
