/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package stylepack shares house styles between projects. A pack is a zip of
// house style YAML files plus a manifest; a project keeps its installed styles
// under <project>/styles and exports pick them by name.
package stylepack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"scenewriter/internal/layout"
	applog "scenewriter/internal/log"
	"scenewriter/internal/storage"
)

// ManifestName is the pack entry listing its styles.
const ManifestName = "stylepack.manifest.txt"

// maxStyleBytes bounds a single style entry read from a pack.
const maxStyleBytes = 1 << 20

// ErrStyleNotFound is returned by Resolve for unknown style names.
var ErrStyleNotFound = errors.New("house style not found")

// Entry is one installed house style.
type Entry struct {
	Name  string // file name without extension
	Path  string
	Style layout.HouseStyle
}

func isStyleFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func stylesDir(projectRoot string) string {
	return filepath.Join(projectRoot, storage.StylesDirName)
}

// List returns the valid house styles of a project sorted by name. Files that
// fail to parse are logged and skipped.
func List(projectRoot string) ([]Entry, error) {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "list")
	ents, err := os.ReadDir(stylesDir(projectRoot))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read styles dir: %w", err)
	}
	var out []Entry
	for _, e := range ents {
		if e.IsDir() || !isStyleFile(e.Name()) {
			continue
		}
		p := filepath.Join(stylesDir(projectRoot), e.Name())
		h, err := layout.LoadHouseStyle(p)
		if err != nil {
			l.Warn("skip invalid house style", slog.String("path", p), slog.Any("err", err))
			continue
		}
		out = append(out, Entry{Name: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), Path: p, Style: h})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Resolve loads a house style by reference: empty yields the default style,
// an existing file path is loaded directly, anything else is looked up by
// name in the project's styles directory.
func Resolve(projectRoot, ref string) (layout.HouseStyle, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return layout.Default(), nil
	}
	if st, err := os.Stat(ref); err == nil && !st.IsDir() {
		return layout.LoadHouseStyle(ref)
	}
	if projectRoot != "" {
		for _, ext := range []string{"", ".yaml", ".yml"} {
			p := filepath.Join(stylesDir(projectRoot), ref+ext)
			if st, err := os.Stat(p); err == nil && !st.IsDir() && isStyleFile(p) {
				return layout.LoadHouseStyle(p)
			}
		}
	}
	return layout.HouseStyle{}, fmt.Errorf("%w: %s", ErrStyleNotFound, ref)
}

// ExportProjectStyles zips the project's valid house styles into destZipPath
// with a manifest at the root. Entries are written in name order. A project
// without styles still yields a pack holding only the manifest.
func ExportProjectStyles(projectRoot string, destZipPath string) (err error) {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "export").With(slog.String("project", projectRoot))
	if strings.TrimSpace(projectRoot) == "" {
		return errors.New("projectRoot is required")
	}
	if strings.TrimSpace(destZipPath) == "" {
		return errors.New("destZipPath is required")
	}
	entries, err := List(projectRoot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZipPath)
	zf, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() {
		if cerr := zf.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(destZipPath)
		}
	}()
	zw := zip.NewWriter(zf)

	var manifest strings.Builder
	fmt.Fprintf(&manifest, "scenewriter style pack\nCreated: %s\nStyles: %d\n\n", time.Now().UTC().Format(time.RFC3339), len(entries))
	for _, e := range entries {
		fmt.Fprintf(&manifest, "%s\t%s\t%.1fpt\n", e.Name, e.Style.Font, e.Style.FontSizePt)
	}
	w, err := zw.Create(ManifestName)
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest.String()); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			return fmt.Errorf("read %s: %w", e.Path, err)
		}
		fw, err := zw.Create(storage.StylesDirName + "/" + filepath.Base(e.Path))
		if err != nil {
			return fmt.Errorf("add %s: %w", e.Name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return fmt.Errorf("build zip: %w", err)
	}
	l.Info("style pack exported", slog.Int("styles", len(entries)), slog.String("zip", destZipPath))
	return nil
}

// InstallPack extracts the house styles of a pack into the project's styles
// directory. Entries are flattened to their base name; only YAML entries that
// parse as a valid house style are installed. Existing files are never
// overwritten. It returns the number of styles installed.
func InstallPack(projectRoot string, packZipPath string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("stylepack"), "install").With(slog.String("project", projectRoot))
	if strings.TrimSpace(projectRoot) == "" {
		return 0, errors.New("projectRoot is required")
	}
	if strings.TrimSpace(packZipPath) == "" {
		return 0, errors.New("packZipPath is required")
	}
	dir := stylesDir(projectRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure styles dir: %w", err)
	}
	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		name := f.Name
		if f.FileInfo().IsDir() || name == ManifestName || !isStyleFile(name) {
			continue
		}
		if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
			l.Warn("skip unsafe entry", slog.String("entry", name))
			continue
		}
		target := filepath.Join(dir, path.Base(name))
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return installed, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := layout.ParseHouseStyle(data); err != nil {
			l.Warn("skip invalid house style", slog.String("entry", name), slog.Any("err", err))
			continue
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return installed, fmt.Errorf("install %s: %w", name, err)
		}
		installed++
	}
	l.Info("style pack installed", slog.Int("styles", installed))
	return installed, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, maxStyleBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxStyleBytes {
		return nil, errors.New("entry too large")
	}
	return data, nil
}
