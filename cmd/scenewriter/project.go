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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"scenewriter/internal/domain"
	"scenewriter/internal/storage"
)

func (a *app) cmdInit(args []string) error {
	fs := newFlagSet("init", a.out)
	grouping := fs.String("grouping", string(domain.GroupingNone), "none|episodes|seasons|seasons-episodes")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usagef("init requires <dir> and <name>")
	}
	g := domain.GroupingMode(*grouping)
	if !g.Valid() {
		return usagef("unknown grouping %q", *grouping)
	}
	abs, err := filepath.Abs(pos[0])
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(abs, storage.BundleFileName)); err == nil {
		return fmt.Errorf("a project already exists at %s", abs)
	}
	a.log.Info("init project", "root", abs, "name", pos[1])
	h, err := storage.InitProject(abs, storage.NewBundle(pos[1], g, a.now()))
	if err != nil {
		return err
	}
	*a.ph = *h
	fmt.Fprintln(a.out, "Created project at", abs)
	return nil
}

func (a *app) cmdOpen(args []string) error {
	if len(args) != 1 {
		return usagef("open requires <dir>")
	}
	h, err := a.open(args[0])
	if err != nil {
		return err
	}
	b := h.Bundle
	fmt.Fprintf(a.out, "Project:  %s (%s)\n", b.Project.Name, b.Project.ID)
	fmt.Fprintf(a.out, "Grouping: %s\n", b.Project.Grouping)
	fmt.Fprintf(a.out, "Seasons:  %d\nEpisodes: %d\nScenes:   %d\n", len(b.Seasons), len(b.Episodes), len(b.Scenes))
	fmt.Fprintln(a.out, "Root:    ", h.Root)
	return nil
}

func (a *app) cmdAddScene(args []string) error {
	fs := newFlagSet("add-scene", a.out)
	contentFile := fs.String("content", "", "file with the scene text, - for stdin")
	loc := fs.String("loc", "", "INT or EXT")
	tod := fs.String("tod", "", "DAY or NIGHT")
	season := fs.String("season", "", "season id")
	episode := fs.String("episode", "", "episode id")
	order := fs.Int("order", -1, "timeline position; default appends")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return usagef("add-scene requires <dir> and <title>")
	}
	h, err := a.open(pos[0])
	if err != nil {
		return err
	}
	var content []byte
	switch *contentFile {
	case "":
	case "-":
		content, err = io.ReadAll(os.Stdin)
	default:
		content, err = os.ReadFile(*contentFile)
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	if *order < 0 {
		*order = 0
		for _, sc := range h.Bundle.Scenes {
			if sc.Order >= *order {
				*order = sc.Order + 1
			}
		}
	}
	now := a.now().UTC()
	sc := domain.Scene{
		ID:        uuid.NewString(),
		ProjectID: h.Bundle.Project.ID,
		Title:     pos[1],
		Content:   string(content),
		Order:     *order,
		SeasonID:  *season,
		EpisodeID: *episode,
		Loc:       domain.Location(strings.ToUpper(*loc)),
		Tod:       domain.TimeOfDay(strings.ToUpper(*tod)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sc.SeasonID != "" {
		if _, ok := h.Bundle.SeasonByID(sc.SeasonID); !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownSeason, sc.SeasonID)
		}
	}
	if sc.EpisodeID != "" {
		if _, ok := h.Bundle.EpisodeByID(sc.EpisodeID); !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownEpisode, sc.EpisodeID)
		}
	}
	h.Bundle.Scenes = append(h.Bundle.Scenes, sc)
	h.Bundle.Project.UpdatedAt = now
	if err := storage.Save(h); err != nil {
		return err
	}
	*a.ph = *h
	fmt.Fprintln(a.out, sc.ID)
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	fs := newFlagSet("history", a.out)
	limit := fs.Int("limit", 20, "number of entries")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usagef("history requires <dir>")
	}
	h, err := a.open(pos[0])
	if err != nil {
		return err
	}
	recs, err := storage.ListExports(ctx, h.Root, *limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(a.out, "No exports yet.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tFORMAT\tSCENES\tBYTES\tFILE")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.CreatedAt.Local().Format(time.DateTime), r.Format, r.Scenes, r.Bytes, r.Filename)
	}
	return tw.Flush()
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	fs := newFlagSet("search", a.out)
	q := storage.SearchQuery{}
	fs.StringVar(&q.Text, "q", "", "full-text query")
	fs.StringVar(&q.Character, "character", "", "character cue")
	fs.StringVar(&q.SeasonID, "season", "", "season id")
	fs.StringVar(&q.EpisodeID, "episode", "", "episode id")
	fs.IntVar(&q.Limit, "limit", 50, "max results")
	usePG := fs.Bool("pg", false, "search the shared postgres store instead of the local index")
	pos, err := parseFlags(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return usagef("search requires <dir>")
	}
	h, err := a.open(pos[0])
	if err != nil {
		return err
	}
	var res []storage.SearchResult
	if *usePG {
		src, err := a.source(ctx)
		if err != nil {
			return err
		}
		defer src.Close()
		res, err = src.Search(ctx, h.Bundle.Project.ID, q)
		if err != nil {
			return err
		}
	} else {
		if rebuilt, err := storage.DetectAndRebuildIndex(ctx, h.Root, h.Bundle); err != nil {
			return err
		} else if rebuilt {
			a.log.Info("scene index rebuilt", "root", h.Root)
		}
		if res, err = storage.Search(ctx, h.Root, q); err != nil {
			return err
		}
	}
	if len(res) == 0 {
		fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range res {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Order, r.SceneID, r.Title, r.Snippet)
	}
	return tw.Flush()
}

func (a *app) cmdReindex(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usagef("reindex requires <dir>")
	}
	h, err := a.open(args[0])
	if err != nil {
		return err
	}
	if err := storage.RebuildIndex(ctx, h.Root, h.Bundle); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	fmt.Fprintf(a.out, "Indexed %d scenes.\n", len(h.Bundle.Scenes))
	return nil
}
