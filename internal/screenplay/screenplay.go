/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package screenplay assembles parsed scenes into a screenplay: scenes ordered
// by their timeline position, each introduced by a slug line, preceded by a
// cover description. The result is format-neutral; see package layout for
// paragraph styling and package export for serialization.
package screenplay

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"scenewriter/internal/domain"
	"scenewriter/internal/script"
)

const (
	UntitledTitle     = "UNTITLED"
	UntitledSeason    = "(Untitled Season)"
	UntitledEpisode   = "(Untitled Episode)"
	AuthorPlaceholder = " "
	WrittenBy         = "Written by"
)

// Group is the display metadata of a season or episode. Order is zero-based;
// labels show Order+1.
type Group struct {
	Title string `json:"title"`
	Order int    `json:"order"`
}

// Input is everything the assembler needs for one export. Callers scope Scenes
// to a single season/episode beforehand; the assembler only orders and slugs.
type Input struct {
	ProjectTitle string
	Author       string
	Season       *Group
	Episode      *Group
	Scenes       []domain.Scene
	Date         time.Time
}

// Cover describes the title page.
type Cover struct {
	Title   string
	Season  string // empty when no season
	Episode string // empty when no episode
	ByLine  string
	Author  string
	Date    time.Time
}

// Script is an assembled screenplay.
type Script struct {
	ProjectTitle string
	Author       string
	Cover        Cover
	Blocks       []script.Block
	Scenes       int
}

// Heading formats a slug line: "INT. KITCHEN - DAY".
func Heading(loc domain.Location, title string, tod domain.TimeOfDay) string {
	t := strings.ToUpper(strings.TrimSpace(title))
	if t == "" {
		t = UntitledTitle
	}
	return fmt.Sprintf("%s. %s - %s", loc.OrDefault(), t, tod.OrDefault())
}

// SortScenes returns a copy of scenes ordered by Order ascending. Ties keep
// input order.
func SortScenes(scenes []domain.Scene) []domain.Scene {
	out := make([]domain.Scene, len(scenes))
	copy(out, scenes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Assemble orders the scenes, emits a SceneHeading before each scene's parsed
// blocks and builds the cover. An empty scene list yields a cover-only script.
func Assemble(in Input) Script {
	ordered := SortScenes(in.Scenes)
	var blocks []script.Block
	for _, sc := range ordered {
		blocks = append(blocks, script.SceneHeading{Text: Heading(sc.Loc, sc.Title, sc.Tod)})
		blocks = append(blocks, script.Parse(sc.Content)...)
	}
	return Script{
		ProjectTitle: in.ProjectTitle,
		Author:       strings.TrimSpace(in.Author),
		Cover:        BuildCover(in),
		Blocks:       blocks,
		Scenes:       len(ordered),
	}
}

// BuildCover derives the title page description.
func BuildCover(in Input) Cover {
	title := strings.ToUpper(strings.TrimSpace(in.ProjectTitle))
	if title == "" {
		title = UntitledTitle
	}
	c := Cover{Title: title, ByLine: WrittenBy, Author: AuthorPlaceholder, Date: in.Date}
	if a := strings.TrimSpace(in.Author); a != "" {
		c.Author = a
	}
	if in.Season != nil {
		c.Season = groupLabel("Season", in.Season, UntitledSeason)
	}
	if in.Episode != nil {
		c.Episode = groupLabel("Episode", in.Episode, UntitledEpisode)
	}
	return c
}

func groupLabel(kind string, g *Group, fallback string) string {
	title := strings.TrimSpace(g.Title)
	if title == "" {
		title = fallback
	}
	return fmt.Sprintf("%s %d: %s", kind, g.Order+1, title)
}

// SeasonGroup converts a bundle season to its display group; nil stays nil.
func SeasonGroup(s *domain.Season) *Group {
	if s == nil {
		return nil
	}
	return &Group{Title: s.Title, Order: s.Order}
}

// EpisodeGroup converts a bundle episode to its display group; nil stays nil.
func EpisodeGroup(e *domain.Episode) *Group {
	if e == nil {
		return nil
	}
	return &Group{Title: e.Title, Order: e.Order}
}
