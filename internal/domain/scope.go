/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSeason      = errors.New("unknown season")
	ErrUnknownEpisode     = errors.New("unknown episode")
	ErrEpisodeNotInSeason = errors.New("episode does not belong to season")
)

// Selection is the subset of a bundle that goes into one export.
type Selection struct {
	Season  *Season
	Episode *Episode
	Scenes  []Scene
}

// Scope narrows the bundle to one season and/or episode according to the
// project's grouping mode. Ids that the grouping mode does not use are
// ignored; empty ids select everything at that level. With seasons-episodes
// grouping and only an episode given, the season is taken from the episode.
// The returned scenes keep bundle order; sorting is the assembler's job.
func (b *Bundle) Scope(seasonID, episodeID string) (Selection, error) {
	g := b.Project.Grouping
	var sel Selection

	if g.UsesSeasons() && seasonID != "" {
		s, ok := b.SeasonByID(seasonID)
		if !ok {
			return Selection{}, fmt.Errorf("%w: %s", ErrUnknownSeason, seasonID)
		}
		sel.Season = s
	}
	if g.UsesEpisodes() && episodeID != "" {
		e, ok := b.EpisodeByID(episodeID)
		if !ok {
			return Selection{}, fmt.Errorf("%w: %s", ErrUnknownEpisode, episodeID)
		}
		if g == GroupingSeasonsEpisode {
			switch {
			case sel.Season != nil && e.SeasonID != "" && e.SeasonID != sel.Season.ID:
				return Selection{}, fmt.Errorf("%w: %s not in %s", ErrEpisodeNotInSeason, e.ID, sel.Season.ID)
			case sel.Season == nil && e.SeasonID != "":
				if s, ok := b.SeasonByID(e.SeasonID); ok {
					sel.Season = s
				}
			}
		}
		sel.Episode = e
	}

	sel.Scenes = make([]Scene, 0, len(b.Scenes))
	for _, sc := range b.Scenes {
		if sel.Season != nil && sc.SeasonID != sel.Season.ID {
			continue
		}
		if sel.Episode != nil && sc.EpisodeID != sel.Episode.ID {
			continue
		}
		sel.Scenes = append(sel.Scenes, sc)
	}
	return sel, nil
}
