/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"scenewriter/internal/export"
	"scenewriter/internal/storage"
	"scenewriter/internal/stylepack"
)

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := newFlagSet("export", a.out)
	format := fs.String("format", a.cfg.Export.Format, "docx|pdf|txt")
	season := fs.String("season", "", "season id")
	episode := fs.String("episode", "", "episode id")
	out := fs.String("out", a.cfg.Export.OutDir, "output directory, relative to the project")
	author := fs.String("author", a.cfg.Export.Author, "author for the cover page")
	style := fs.String("style", a.cfg.Export.StyleFile, "house style name or YAML file")
	remote := fs.Bool("remote", false, "render on the configured scenewriter server")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usagef("export requires <dir>")
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	h, err := a.open(pos[0])
	if err != nil {
		return err
	}
	sel, err := h.Bundle.Scope(*season, *episode)
	if err != nil {
		return err
	}
	req := export.RequestFromSelection(&h.Bundle, sel, *author, a.now())

	var art *export.Artifact
	if *remote {
		art, err = a.client().Export(ctx, req, f)
	} else {
		hs, serr := stylepack.Resolve(h.Root, *style)
		if serr != nil {
			return serr
		}
		art, err = export.Export(req, export.Options{Format: f, Style: &hs, Now: a.now})
	}
	if err != nil {
		return err
	}
	path, err := export.Save(art, outDir(h.Root, *out))
	if err != nil {
		return err
	}
	rec := storage.ExportRecord{
		Format:   string(art.Format),
		Filename: art.Filename,
		Path:     path,
		Scenes:   len(sel.Scenes),
		Bytes:    int64(len(art.Data)),
		SHA256:   storage.Checksum(art.Data),
	}
	if sel.Season != nil {
		rec.SeasonID = sel.Season.ID
	}
	if sel.Episode != nil {
		rec.EpisodeID = sel.Episode.ID
	}
	if _, err := storage.RecordExport(ctx, h.Root, rec); err != nil {
		a.log.Warn("record export failed", "err", err)
	}
	fmt.Fprintln(a.out, path)
	return nil
}

// cmdRender exports a raw JSON export request without a project.
func (a *app) cmdRender(args []string) error {
	fs := newFlagSet("render", a.out)
	format := fs.String("format", a.cfg.Export.Format, "docx|pdf|txt")
	out := fs.String("out", ".", "output directory")
	style := fs.String("style", a.cfg.Export.StyleFile, "house style YAML file")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usagef("render requires <request.json> or -")
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return usageError{msg: err.Error()}
	}
	var data []byte
	if pos[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(pos[0])
	}
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req export.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	hs, err := stylepack.Resolve("", *style)
	if err != nil {
		return err
	}
	art, err := export.Export(req, export.Options{Format: f, Style: &hs, Now: a.now})
	if err != nil {
		return err
	}
	path, err := export.Save(art, *out)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func (a *app) cmdBatch(ctx context.Context, args []string) error {
	fs := newFlagSet("batch", a.out)
	preset := fs.String("preset", string(export.PresetEdit), "edit|print|preview|all")
	out := fs.String("out", a.cfg.Export.OutDir, "output directory, relative to the project")
	author := fs.String("author", a.cfg.Export.Author, "author for the cover page")
	style := fs.String("style", a.cfg.Export.StyleFile, "house style name or YAML file")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usagef("batch requires <dir>")
	}
	switch p := export.PresetName(*preset); p {
	case export.PresetEdit, export.PresetPrint, export.PresetPreview, export.PresetAll:
	default:
		return usagef("unknown preset %q", *preset)
	}
	h, err := a.open(pos[0])
	if err != nil {
		return err
	}
	hs, err := stylepack.Resolve(h.Root, *style)
	if err != nil {
		return err
	}
	paths, err := export.BatchExport(&h.Bundle, export.BatchOptions{
		Preset: export.PresetName(*preset),
		OutDir: outDir(h.Root, *out),
		Author: *author,
		Style:  &hs,
		Date:   a.now(),
		OnSaved: func(art *export.Artifact, path string, u export.Scope) {
			rec := storage.ExportRecord{
				Format:    string(art.Format),
				Filename:  art.Filename,
				Path:      path,
				SeasonID:  u.SeasonID,
				EpisodeID: u.EpisodeID,
				Scenes:    art.Scenes,
				Bytes:     int64(len(art.Data)),
				SHA256:    storage.Checksum(art.Data),
			}
			if _, err := storage.RecordExport(ctx, h.Root, rec); err != nil {
				a.log.Warn("record export failed", "err", err)
			}
		},
	})
	for _, p := range paths {
		fmt.Fprintln(a.out, p)
	}
	return err
}

func (a *app) cmdStyles(args []string) error {
	if len(args) < 2 {
		return usagef("styles requires <dir> and list|export|install")
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	switch args[1] {
	case "list":
		entries, err := stylepack.List(root)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(a.out, "No house styles installed.")
		}
		for _, e := range entries {
			fmt.Fprintf(a.out, "%s\t%s %.1fpt\n", e.Name, e.Style.Font, e.Style.FontSizePt)
		}
		return nil
	case "export":
		if len(args) != 3 {
			return usagef("styles export requires <zip>")
		}
		if err := stylepack.ExportProjectStyles(root, args[2]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Wrote", args[2])
		return nil
	case "install":
		if len(args) != 3 {
			return usagef("styles install requires <zip>")
		}
		n, err := stylepack.InstallPack(root, args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Installed %d house styles.\n", n)
		return nil
	}
	return usagef("unknown styles action %q", args[1])
}
