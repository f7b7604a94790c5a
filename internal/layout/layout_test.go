/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenewriter/internal/screenplay"
	"scenewriter/internal/script"
)

func TestDefaultHouseStyleMeasures(t *testing.T) {
	h := Default()
	require.NoError(t, h.Validate())

	assert.Equal(t, Twips(1440), h.BodyPage.Margins.Top)
	assert.Equal(t, Twips(1440), h.BodyPage.Margins.Bottom)
	assert.Equal(t, Twips(2160), h.BodyPage.Margins.Left)
	assert.Equal(t, Twips(1440), h.BodyPage.Margins.Right)

	assert.Equal(t, Indent{}, h.Style(StyleAction).Indent)
	assert.Equal(t, Indent{}, h.Style(StyleSceneSlug).Indent)
	assert.Equal(t, Indent{Left: 3888}, h.Style(StyleCharacter).Indent)
	assert.Equal(t, Indent{Left: 2016, Right: 1440}, h.Style(StyleDialogue).Indent)
	assert.Equal(t, Indent{Left: 3024, Right: 1440}, h.Style(StyleParenthetical).Indent)

	assert.Equal(t, "Courier New", h.Font)
	assert.Equal(t, 24, h.FontSizeHalfPoints())
	assert.Equal(t, Twips(144), h.Pitch())
	assert.Equal(t, 60, h.Columns(h.BodyPage.ContentWidth()))
	assert.Equal(t, "7.", h.PageLabel(7))
}

func TestHouseStyleCopiesAreIndependent(t *testing.T) {
	a := Default()
	b := a
	b.Styles.Dialogue.Indent.Left = 0
	assert.Equal(t, Twips(2016), a.Style(StyleDialogue).Indent.Left)
}

func TestParagraphForEveryBlock(t *testing.T) {
	cases := []struct {
		in   script.Block
		want Paragraph
	}{
		{script.SceneHeading{Text: "INT. KITCHEN - DAY"}, Paragraph{Style: StyleSceneSlug, Text: "INT. KITCHEN - DAY"}},
		{script.Action{Text: "He enters.\nSlowly."}, Paragraph{Style: StyleAction, Text: "He enters.\nSlowly."}},
		{script.Character{Name: "JOE"}, Paragraph{Style: StyleCharacter, Text: "JOE"}},
		{script.Dialogue{Text: "Hi."}, Paragraph{Style: StyleDialogue, Text: "Hi."}},
		{script.Parenthetical{Text: "(smiles)"}, Paragraph{Style: StyleParenthetical, Text: "(smiles)"}},
		{script.Blank{}, Paragraph{Style: StyleNormal}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParagraphFor(c.in))
	}
}

func TestBuildSections(t *testing.T) {
	date := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	s := screenplay.Script{
		ProjectTitle: "Pilot",
		Author:       "Sam",
		Cover: screenplay.Cover{
			Title: "PILOT", Season: "Season 1: One", ByLine: screenplay.WrittenBy, Author: "Sam", Date: date,
		},
		Blocks: []script.Block{script.SceneHeading{Text: "INT. A - DAY"}, script.Blank{}},
	}
	doc := Build(s, Default())
	require.Len(t, doc.Sections, 2)

	cover, body := doc.Sections[0], doc.Sections[1]
	assert.False(t, cover.Numbered)
	assert.True(t, body.Numbered)
	assert.Equal(t, 1, body.StartPage)
	assert.Equal(t, Default().BodyPage, body.Page)
	assert.Equal(t, []Paragraph{{Style: StyleSceneSlug, Text: "INT. A - DAY"}, {Style: StyleNormal}}, body.Paragraphs)

	want := []Paragraph{
		{Style: StyleNormal}, {Style: StyleNormal}, {Style: StyleNormal}, {Style: StyleNormal},
		{Style: StyleCoverTitle, Text: "PILOT"},
		{Style: StyleCoverBy, Text: "Season 1: One"},
		{Style: StyleNormal},
		{Style: StyleCoverBy, Text: "Written by"},
		{Style: StyleCoverBy, Text: "Sam"},
		{Style: StyleNormal},
		{Style: StyleCoverBy, Text: "10/17/2026"},
	}
	assert.Equal(t, want, cover.Paragraphs)
	assert.Equal(t, "Pilot", doc.Title)
	assert.Equal(t, DocumentDescription, doc.Description)
	assert.Equal(t, date, doc.Created)
}

func TestParseHouseStyleOverrides(t *testing.T) {
	data := []byte(`
name: a4-house
font: Courier Prime
body_page:
  width_in: 8.27
  height_in: 11.69
styles:
  Character:
    left_in: 2.5
  SceneSlug:
    space_after_pt: 24
page_number_suffix: ""
date_layout: "2006-01-02"
`)
	h, err := ParseHouseStyle(data)
	require.NoError(t, err)
	assert.Equal(t, "a4-house", h.Name)
	assert.Equal(t, "Courier Prime", h.Font)
	assert.Equal(t, Inches(8.27), h.BodyPage.Width)
	assert.Equal(t, Twips(2160), h.BodyPage.Margins.Left, "unset margins keep defaults")
	assert.Equal(t, Twips(3600), h.Style(StyleCharacter).Indent.Left)
	assert.Equal(t, Twips(480), h.Style(StyleSceneSlug).SpaceAfter)
	assert.Equal(t, "3", h.PageLabel(3))
	assert.Equal(t, "2006-01-02", h.DateLayout)
	assert.Equal(t, Default().Style(StyleDialogue), h.Style(StyleDialogue))
}

func TestParseHouseStyleRejectsInvalid(t *testing.T) {
	bad := map[string]string{
		"unknown style":  "styles:\n  Transition:\n    left_in: 4\n",
		"negative":       "styles:\n  Dialogue:\n    left_in: -1\n",
		"too wide":       "styles:\n  Dialogue:\n    left_in: 4\n    right_in: 2\n",
		"font size":      "font_size_pt: 0\n",
		"alignment":      "styles:\n  Action:\n    align: justify\n",
		"malformed yaml": "styles: [",
	}
	for name, in := range bad {
		_, err := ParseHouseStyle([]byte(in))
		assert.Error(t, err, name)
	}
}

func TestLoadHouseStyle(t *testing.T) {
	h, err := LoadHouseStyle("")
	require.NoError(t, err)
	assert.Equal(t, Default(), h)

	p := filepath.Join(t.TempDir(), "house.yaml")
	require.NoError(t, os.WriteFile(p, []byte("font_size_pt: 10\n"), 0o644))
	h, err = LoadHouseStyle(p)
	require.NoError(t, err)
	assert.Equal(t, 20, h.FontSizeHalfPoints())

	_, err = LoadHouseStyle(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWrap(t *testing.T) {
	w := NewWrapper(MonospaceProvider{})
	assert.Equal(t, []string{"Hello", "world from", "Go"}, w.Wrap("Hello world from Go", 10))
	assert.Equal(t, []string{"Hello worl"}, w.Wrap("Hello worl", 10))
	assert.Equal(t, []string{"one", "two"}, w.Wrap("one\ntwo", 40))
	assert.Equal(t, []string{"supercalifragilistic", "yes"}, w.Wrap("supercalifragilistic yes", 8))
	assert.Equal(t, []string{""}, w.Wrap("", 10))
}

func TestWrap_ZeroWrapperIsSafeForConcurrentUse(t *testing.T) {
	var w Wrapper
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, []string{"Hello", "world"}, w.Wrap("Hello world", 6))
		}()
	}
	wg.Wait()
	assert.Nil(t, w.Provider)
}
