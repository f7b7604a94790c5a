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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"scenewriter/internal/domain"
)

const (
	BundleFileName = "bundle.json"
	BackupsDirName = "backups"
	ExportsDirName = "exports"
	StylesDirName  = "styles"
)

var standardSubDirs = []string{
	ExportsDirName,
	StylesDirName,
	BackupsDirName,
}

// ProjectHandle keeps track of the bundle loaded from or saved to disk.
// Root is the project directory containing bundle.json and subfolders.
type ProjectHandle struct {
	Root       string
	BundlePath string
	Bundle     domain.Bundle
}

// NewBundle returns an empty bundle for a new project.
func NewBundle(name string, grouping domain.GroupingMode, now time.Time) domain.Bundle {
	if grouping == "" {
		grouping = domain.GroupingNone
	}
	now = now.UTC()
	return domain.Bundle{
		Project: domain.Project{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
			Grouping:  grouping,
		},
		Seasons:  []domain.Season{},
		Episodes: []domain.Episode{},
		Scenes:   []domain.Scene{},
	}
}

// InitProject creates a project directory at root (creating it if needed),
// scaffolds the standard subfolders, writes the bundle transactionally and
// builds the scene index.
func InitProject(root string, b domain.Bundle) (*ProjectHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create project root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	ph := &ProjectHandle{
		Root:       root,
		BundlePath: filepath.Join(root, BundleFileName),
		Bundle:     b,
	}
	if err := Save(ph); err != nil {
		return nil, err
	}
	return ph, nil
}

// Open loads the project at root. If bundle.json cannot be read or parsed the
// latest backup is tried. A bundle that parses but violates the schema is
// reported as a *ValidationError.
func Open(root string) (*ProjectHandle, error) {
	bpath := filepath.Join(root, BundleFileName)
	data, err := os.ReadFile(bpath)
	if err != nil {
		b, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open bundle: %w; backup attempt: %v", err, berr)
		}
		return &ProjectHandle{Root: root, BundlePath: bpath, Bundle: *b}, nil
	}
	b, err := DecodeBundle(data)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		bb, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("%w; backup attempt: %v", err, berr)
		}
		return &ProjectHandle{Root: root, BundlePath: bpath, Bundle: *bb}, nil
	}
	return &ProjectHandle{Root: root, BundlePath: bpath, Bundle: *b}, nil
}

// DecodeBundle parses and validates bundle JSON.
func DecodeBundle(data []byte) (*domain.Bundle, error) {
	if !json.Valid(data) {
		return nil, errors.New("parse bundle: invalid JSON")
	}
	if err := ValidateBundle(data); err != nil {
		return nil, err
	}
	var b domain.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	return &b, nil
}

// Save writes the bundle with transactional semantics after backing up the
// previous bundle.json, then refreshes the scene index. The bundle is
// validated before anything is written.
func Save(ph *ProjectHandle) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if ph.Root == "" || ph.BundlePath == "" {
		return errors.New("invalid ProjectHandle: missing paths")
	}
	data, err := json.MarshalIndent(ph.Bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	data = append(data, '\n')
	if err := ValidateBundle(data); err != nil {
		return err
	}

	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(ph.BundlePath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", BundleFileName, stamp))
		if cerr := copyFile(ph.BundlePath, bpath); cerr != nil {
			return fmt.Errorf("backup current bundle: %w", cerr)
		}
	}

	// temp file in the same directory, then rename over the target
	f, err := os.CreateTemp(filepath.Dir(ph.BundlePath), "."+BundleFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	temp := f.Name()
	_ = f.Close()
	if werr := writeFileSync(temp, data); werr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("write temp bundle: %w", werr)
	}
	if rerr := os.Rename(temp, ph.BundlePath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace bundle: %w", rerr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	if err := UpdateIndex(ctx, ph.Root, ph.Bundle); err != nil {
		return fmt.Errorf("update index: %w", err)
	}
	return nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies src to dst, overwriting dst.
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// Backups lists the bundle backups of root, oldest first.
func Backups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, BundleFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func openFromLatestBackup(root string) (*domain.Bundle, error) {
	candidates, err := Backups(root)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	latest := candidates[len(candidates)-1]
	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	b, err := DecodeBundle(data)
	if err != nil {
		return nil, fmt.Errorf("latest backup: %w", err)
	}
	return b, nil
}

// CrashSnapshot writes the in-memory bundle next to the backups without
// validation, so a crash never loses what was loaded. It returns the path.
func CrashSnapshot(ph *ProjectHandle) (string, error) {
	if ph == nil || ph.Root == "" {
		return "", errors.New("invalid ProjectHandle")
	}
	data, err := json.MarshalIndent(ph.Bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bundle: %w", err)
	}
	bdir := filepath.Join(ph.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, "crash-"+time.Now().Format("20060102-150405.000000")+"."+BundleFileName)
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}
