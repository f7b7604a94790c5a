/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"strings"
	"time"
)

// This file defines the project bundle model: a project with optional seasons and
// episodes and the scenes that belong to it. It is the JSON shape persisted as
// bundle.json and exchanged with the remote scene store.

// GroupingMode controls how scenes are organized for export.
type GroupingMode string

const (
	GroupingNone           GroupingMode = "none"
	GroupingEpisodes       GroupingMode = "episodes"
	GroupingSeasons        GroupingMode = "seasons"
	GroupingSeasonsEpisode GroupingMode = "seasons-episodes"
)

// Valid reports whether g is one of the known grouping modes. The empty value is
// treated as GroupingNone.
func (g GroupingMode) Valid() bool {
	switch g {
	case "", GroupingNone, GroupingEpisodes, GroupingSeasons, GroupingSeasonsEpisode:
		return true
	}
	return false
}

// UsesSeasons reports whether scenes are grouped by season.
func (g GroupingMode) UsesSeasons() bool {
	return g == GroupingSeasons || g == GroupingSeasonsEpisode
}

// UsesEpisodes reports whether scenes are grouped by episode.
func (g GroupingMode) UsesEpisodes() bool {
	return g == GroupingEpisodes || g == GroupingSeasonsEpisode
}

// Location is the INT/EXT tag of a scene heading.
type Location string

const (
	Interior Location = "INT"
	Exterior Location = "EXT"
)

// OrDefault returns the upper-cased location, INT when unset.
func (l Location) OrDefault() string {
	s := strings.ToUpper(strings.TrimSpace(string(l)))
	if s == "" {
		return string(Interior)
	}
	return s
}

// TimeOfDay is the DAY/NIGHT tag of a scene heading.
type TimeOfDay string

const (
	Day   TimeOfDay = "DAY"
	Night TimeOfDay = "NIGHT"
)

// OrDefault returns the upper-cased time of day, DAY when unset.
func (t TimeOfDay) OrDefault() string {
	s := strings.ToUpper(strings.TrimSpace(string(t)))
	if s == "" {
		return string(Day)
	}
	return s
}

// Project is the top-level record of a bundle.
type Project struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Grouping  GroupingMode `json:"grouping"`
}

// Season groups episodes and scenes. Order is zero-based.
type Season struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Title     string    `json:"title"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Episode groups scenes. SeasonID is set when grouping is seasons-episodes.
type Episode struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	SeasonID  string    `json:"seasonId,omitempty"`
	Title     string    `json:"title"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SceneVersion is a saved revision of a scene's content.
type SceneVersion struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
}

// Scene is a unit of narrative text. Content may contain dialogue markup
// (@:NAME ... :@). Order is the position on the timeline within its container.
type Scene struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"projectId"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Versions    []SceneVersion `json:"versions,omitempty"`
	Color       string         `json:"color,omitempty"`
	Order       int            `json:"order"`
	SeasonID    string         `json:"seasonId,omitempty"`
	EpisodeID   string         `json:"episodeId,omitempty"`
	DurationMin float64        `json:"durationMin,omitempty"`
	Loc         Location       `json:"loc,omitempty"`
	Tod         TimeOfDay      `json:"tod,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Bundle is a project's full collection of seasons, episodes and scenes.
type Bundle struct {
	Project  Project   `json:"project"`
	Seasons  []Season  `json:"seasons"`
	Episodes []Episode `json:"episodes"`
	Scenes   []Scene   `json:"scenes"`
}

// SeasonByID returns the season with the given id.
func (b *Bundle) SeasonByID(id string) (*Season, bool) {
	for i := range b.Seasons {
		if b.Seasons[i].ID == id {
			return &b.Seasons[i], true
		}
	}
	return nil, false
}

// EpisodeByID returns the episode with the given id.
func (b *Bundle) EpisodeByID(id string) (*Episode, bool) {
	for i := range b.Episodes {
		if b.Episodes[i].ID == id {
			return &b.Episodes[i], true
		}
	}
	return nil, false
}
