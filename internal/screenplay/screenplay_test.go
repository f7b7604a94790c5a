/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package screenplay

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenewriter/internal/domain"
	"scenewriter/internal/script"
)

func TestHeading(t *testing.T) {
	cases := []struct {
		loc   domain.Location
		title string
		tod   domain.TimeOfDay
		want  string
	}{
		{domain.Interior, "Kitchen", domain.Day, "INT. KITCHEN - DAY"},
		{domain.Exterior, "roof top", domain.Night, "EXT. ROOF TOP - NIGHT"},
		{"", "", "", "INT. UNTITLED - DAY"},
		{"ext", "  ", "night", "EXT. UNTITLED - NIGHT"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Heading(c.loc, c.title, c.tod))
	}
}

func TestAssemble_EndToEndKitchen(t *testing.T) {
	s := Assemble(Input{
		ProjectTitle: "Pilot",
		Scenes: []domain.Scene{{
			ID: "1", Order: 1, Title: "Kitchen", Loc: domain.Interior, Tod: domain.Day,
			Content: "He enters.\n\n@:JOE\nHi.\n(smiles)\nBye.\n:@",
		}},
	})
	want := []script.Block{
		script.SceneHeading{Text: "INT. KITCHEN - DAY"},
		script.Action{Text: "He enters."},
		script.Blank{},
		script.Character{Name: "JOE"},
		script.Dialogue{Text: "Hi."},
		script.Parenthetical{Text: "(smiles)"},
		script.Dialogue{Text: "Bye."},
	}
	assert.Equal(t, want, s.Blocks)
	assert.Equal(t, 1, s.Scenes)
}

func TestAssemble_OrderIndependentOfInputPermutation(t *testing.T) {
	scenes := []domain.Scene{
		{ID: "a", Title: "A", Order: 3, Content: "a"},
		{ID: "b", Title: "B", Order: 0, Content: "b"},
		{ID: "c", Title: "C", Order: 2, Content: "c"},
		{ID: "d", Title: "D", Order: 1, Content: "d"},
		{ID: "e", Title: "E", Order: 5, Content: "e"},
	}
	want := Assemble(Input{Scenes: scenes}).Blocks
	require.Equal(t, script.SceneHeading{Text: "INT. B - DAY"}, want[0])

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		perm := make([]domain.Scene, len(scenes))
		for j, k := range rng.Perm(len(scenes)) {
			perm[j] = scenes[k]
		}
		assert.Equal(t, want, Assemble(Input{Scenes: perm}).Blocks)
	}
}

func TestSortScenes_StableTiesAndNoMutation(t *testing.T) {
	in := []domain.Scene{{ID: "x", Order: 1}, {ID: "y", Order: 0}, {ID: "z", Order: 1}}
	out := SortScenes(in)
	assert.Equal(t, []string{"y", "x", "z"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "x", in[0].ID, "input must not be reordered")
}

func TestAssemble_EmptyCollectionIsCoverOnly(t *testing.T) {
	s := Assemble(Input{})
	assert.Empty(t, s.Blocks)
	assert.Equal(t, UntitledTitle, s.Cover.Title)
	assert.Equal(t, AuthorPlaceholder, s.Cover.Author)
}

func TestBuildCover(t *testing.T) {
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	c := BuildCover(Input{
		ProjectTitle: "Night Shift",
		Author:       "  Sam Rivera ",
		Season:       &Group{Title: "Beginnings", Order: 0},
		Episode:      &Group{Title: "", Order: 4},
		Date:         date,
	})
	assert.Equal(t, "NIGHT SHIFT", c.Title)
	assert.Equal(t, "Season 1: Beginnings", c.Season)
	assert.Equal(t, "Episode 5: (Untitled Episode)", c.Episode)
	assert.Equal(t, WrittenBy, c.ByLine)
	assert.Equal(t, "Sam Rivera", c.Author)
	assert.Equal(t, date, c.Date)

	c = BuildCover(Input{ProjectTitle: "X"})
	assert.Empty(t, c.Season)
	assert.Empty(t, c.Episode)
}

func TestGroupsFromDomain(t *testing.T) {
	assert.Nil(t, SeasonGroup(nil))
	assert.Nil(t, EpisodeGroup(nil))
	assert.Equal(t, &Group{Title: "S", Order: 2}, SeasonGroup(&domain.Season{Title: "S", Order: 2}))
	assert.Equal(t, &Group{Title: "E", Order: 1}, EpisodeGroup(&domain.Episode{Title: "E", Order: 1}))
}
