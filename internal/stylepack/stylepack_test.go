/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package stylepack

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenewriter/internal/layout"
)

func writeStyle(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func buildZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	zpath := filepath.Join(t.TempDir(), "pack.zip")
	f, err := os.Create(zpath)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}
	return zpath
}

func TestExportAndInstallPack(t *testing.T) {
	projDir := t.TempDir()
	styles := filepath.Join(projDir, "styles")
	writeStyle(t, styles, "a4.yaml", "name: a4\nbody_page:\n  width_in: 8.27\n  height_in: 11.69\n")
	writeStyle(t, styles, "tight.yml", "font_size_pt: 10\n")
	writeStyle(t, styles, "broken.yaml", "font_size_pt: -1\n")
	writeStyle(t, styles, "notes.txt", "not a style")

	zipPath := filepath.Join(projDir, "out", "pack.zip")
	if err := ExportProjectStyles(projDir, zipPath); err != nil {
		t.Fatalf("export pack: %v", err)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	_ = r.Close()
	if got := strings.Join(names, ","); got != ManifestName+",styles/a4.yaml,styles/tight.yml" {
		t.Fatalf("pack entries = %s", got)
	}

	proj2 := t.TempDir()
	installed, err := InstallPack(proj2, zipPath)
	if err != nil {
		t.Fatalf("install pack: %v", err)
	}
	if installed != 2 {
		t.Fatalf("installed = %d, want 2", installed)
	}
	list, err := List(proj2)
	if err != nil || len(list) != 2 {
		t.Fatalf("List = %+v, %v", list, err)
	}
	if list[0].Name != "a4" || list[0].Style.BodyPage.Width != layout.Inches(8.27) {
		t.Fatalf("unexpected first style: %+v", list[0])
	}
	if list[1].Style.FontSizeHalfPoints() != 20 {
		t.Fatalf("unexpected second style: %+v", list[1])
	}
}

func TestExportProjectStyles_ErrorArgsAndEmptyDir(t *testing.T) {
	if err := ExportProjectStyles("", ""); err == nil {
		t.Fatalf("expected error on empty args")
	}
	proj := t.TempDir()
	zipPath := filepath.Join(proj, "only_manifest.zip")
	if err := ExportProjectStyles(proj, zipPath); err != nil {
		t.Fatalf("export empty styles: %v", err)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()
	if len(r.File) != 1 || r.File[0].Name != ManifestName {
		t.Fatalf("expected manifest only, got %d entries", len(r.File))
	}
}

func TestInstallPack_UnsafeInvalidAndExisting(t *testing.T) {
	proj := t.TempDir()
	zpath := buildZip(t, map[string]string{
		"../evil.yaml":       "font_size_pt: 11\n",
		"styles/good.yaml":   "font_size_pt: 11\n",
		"styles/bad.yaml":    "styles:\n  Transition:\n    left_in: 1\n",
		"top/nested/ok.yaml": "name: nested\n",
		"readme.md":          "hello",
	})
	writeStyle(t, filepath.Join(proj, "styles"), "good.yaml", "font_size_pt: 12\n")

	installed, err := InstallPack(proj, zpath)
	if err != nil {
		t.Fatalf("install pack: %v", err)
	}
	if installed != 1 {
		t.Fatalf("installed = %d, want 1", installed)
	}
	if _, err := os.Stat(filepath.Join(proj, "evil.yaml")); err == nil {
		t.Fatalf("evil.yaml must not escape the styles dir")
	}
	if _, err := os.Stat(filepath.Join(proj, "styles", "ok.yaml")); err != nil {
		t.Fatalf("nested entry should be flattened into styles: %v", err)
	}
	b, _ := os.ReadFile(filepath.Join(proj, "styles", "good.yaml"))
	if string(b) != "font_size_pt: 12\n" {
		t.Fatalf("existing style was overwritten: %q", b)
	}
	if _, err := os.Stat(filepath.Join(proj, "styles", "bad.yaml")); err == nil {
		t.Fatalf("invalid style must not be installed")
	}
}

func TestResolve(t *testing.T) {
	proj := t.TempDir()
	writeStyle(t, filepath.Join(proj, "styles"), "tight.yaml", "font_size_pt: 10\n")

	h, err := Resolve(proj, "")
	if err != nil || h.Name != layout.Default().Name {
		t.Fatalf("empty ref = %+v, %v", h.Name, err)
	}
	if h, err = Resolve(proj, "tight"); err != nil || h.FontSizeHalfPoints() != 20 {
		t.Fatalf("by name = %v, %v", h.FontSizePt, err)
	}
	if h, err = Resolve("", filepath.Join(proj, "styles", "tight.yaml")); err != nil || h.FontSizeHalfPoints() != 20 {
		t.Fatalf("by path = %v, %v", h.FontSizePt, err)
	}
	if _, err = Resolve(proj, "missing"); !errors.Is(err, ErrStyleNotFound) {
		t.Fatalf("expected ErrStyleNotFound, got %v", err)
	}
}
