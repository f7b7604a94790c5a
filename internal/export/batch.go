/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"scenewriter/internal/domain"
	"scenewriter/internal/layout"
)

// PresetName represents a named batch export preset.
type PresetName string

const (
	PresetEdit    PresetName = "edit"    // docx for further editing
	PresetPrint   PresetName = "print"   // pdf
	PresetPreview PresetName = "preview" // plain text
	PresetAll     PresetName = "all"
)

// BatchOptions controls a batch export of every unit of a bundle.
//
// A unit is what the grouping mode makes exportable on its own: the whole
// project (none), each episode (episodes, seasons-episodes) or each season
// (seasons). Outputs land in OutDir/<format>/.
type BatchOptions struct {
	Preset  PresetName
	Formats []Format // empty means preset defaults
	OutDir  string
	Author  string
	Style   *layout.HouseStyle
	Date    time.Time // zero means now
	// OnSaved, when set, is called after each artifact is written.
	OnSaved func(art *Artifact, path string, unit Scope)
}

// Scope identifies one exportable unit of a bundle.
type Scope struct {
	SeasonID  string
	EpisodeID string
}

// Units lists the exportable units of b in timeline order.
func Units(b *domain.Bundle) []Scope {
	switch b.Project.Grouping {
	case domain.GroupingEpisodes, domain.GroupingSeasonsEpisode:
		eps := append([]domain.Episode(nil), b.Episodes...)
		sort.SliceStable(eps, func(i, j int) bool {
			si, sj := seasonOrder(b, eps[i].SeasonID), seasonOrder(b, eps[j].SeasonID)
			if si != sj {
				return si < sj
			}
			return eps[i].Order < eps[j].Order
		})
		out := make([]Scope, 0, len(eps))
		for _, e := range eps {
			out = append(out, Scope{EpisodeID: e.ID})
		}
		return out
	case domain.GroupingSeasons:
		ss := append([]domain.Season(nil), b.Seasons...)
		sort.SliceStable(ss, func(i, j int) bool { return ss[i].Order < ss[j].Order })
		out := make([]Scope, 0, len(ss))
		for _, s := range ss {
			out = append(out, Scope{SeasonID: s.ID})
		}
		return out
	default:
		return []Scope{{}}
	}
}

func seasonOrder(b *domain.Bundle, id string) int {
	if s, ok := b.SeasonByID(id); ok {
		return s.Order
	}
	return -1
}

// BatchExport exports every unit of b in every selected format and returns
// the written paths. A bundle without units exports as one whole project.
func BatchExport(b *domain.Bundle, opt BatchOptions) ([]string, error) {
	if b == nil {
		return nil, fmt.Errorf("bundle is nil")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	date := opt.Date
	if date.IsZero() {
		date = time.Now()
	}

	units := Units(b)
	if len(units) == 0 {
		units = []Scope{{}}
	}
	var written []string
	for _, u := range units {
		sel, err := b.Scope(u.SeasonID, u.EpisodeID)
		if err != nil {
			return written, err
		}
		req := RequestFromSelection(b, sel, opt.Author, date)
		for _, f := range formats {
			art, err := Export(req, Options{Format: f, Style: opt.Style})
			if err != nil {
				return written, fmt.Errorf("%s %s: %w", f, unitName(u), err)
			}
			p, err := Save(art, filepath.Join(opt.OutDir, string(art.Format)))
			if err != nil {
				return written, err
			}
			written = append(written, p)
			if opt.OnSaved != nil {
				opt.OnSaved(art, p, u)
			}
		}
	}
	return written, nil
}

func unitName(u Scope) string {
	switch {
	case u.EpisodeID != "":
		return "episode " + u.EpisodeID
	case u.SeasonID != "":
		return "season " + u.SeasonID
	default:
		return "project"
	}
}

func presetDefaultFormats(p PresetName) []Format {
	switch p {
	case PresetPrint:
		return []Format{FormatPDF}
	case PresetPreview:
		return []Format{FormatTXT}
	case PresetAll:
		return []Format{FormatDOCX, FormatPDF, FormatTXT}
	default:
		return []Format{FormatDOCX}
	}
}
