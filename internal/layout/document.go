/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package layout maps an assembled screenplay onto styled paragraphs with the
// physical parameters of a house style. The resulting Document is what the
// exporters serialize; it carries no format-specific detail.
package layout

import (
	"fmt"
	"strings"
	"time"

	"scenewriter/internal/screenplay"
	"scenewriter/internal/script"
)

// DocumentDescription is stored in exported document metadata.
const DocumentDescription = "Screenplay created by scenewriter"

// Paragraph is one styled paragraph. Text may contain "\n" for explicit line
// breaks inside the paragraph.
type Paragraph struct {
	Style StyleID
	Text  string
}

// Lines splits the paragraph at its explicit line breaks.
func (p Paragraph) Lines() []string { return strings.Split(p.Text, "\n") }

// Blank reports whether the paragraph only adds vertical space.
func (p Paragraph) Blank() bool { return p.Text == "" }

// Section is a run of pages sharing geometry and numbering.
type Section struct {
	Page Page
	// Numbered sections show a running page number header. Numbering starts
	// at StartPage.
	Numbered   bool
	StartPage  int
	Paragraphs []Paragraph
}

// Document is the laid out screenplay: a cover section followed by the
// numbered scene section.
type Document struct {
	Title       string
	Author      string
	Description string
	Created     time.Time
	Style       HouseStyle
	Sections    []Section
}

// Build lays out s with the given house style.
func Build(s screenplay.Script, style HouseStyle) Document {
	cover := Section{Page: style.CoverPage, Paragraphs: CoverParagraphs(s.Cover, style)}
	body := Section{Page: style.BodyPage, Numbered: true, StartPage: 1}
	body.Paragraphs = make([]Paragraph, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		body.Paragraphs = append(body.Paragraphs, ParagraphFor(b))
	}
	return Document{
		Title:       s.ProjectTitle,
		Author:      s.Author,
		Description: DocumentDescription,
		Created:     s.Cover.Date,
		Style:       style,
		Sections:    []Section{cover, body},
	}
}

// ParagraphFor maps a block to its paragraph.
func ParagraphFor(b script.Block) Paragraph {
	switch v := b.(type) {
	case script.SceneHeading:
		return Paragraph{Style: StyleSceneSlug, Text: v.Text}
	case script.Action:
		return Paragraph{Style: StyleAction, Text: v.Text}
	case script.Character:
		return Paragraph{Style: StyleCharacter, Text: v.Name}
	case script.Dialogue:
		return Paragraph{Style: StyleDialogue, Text: v.Text}
	case script.Parenthetical:
		return Paragraph{Style: StyleParenthetical, Text: v.Text}
	case script.Blank:
		return Paragraph{Style: StyleNormal}
	}
	// unreachable: script.Block is sealed
	panic(fmt.Sprintf("layout: unhandled block %T", b))
}

// CoverParagraphs renders the title page: padding, title, optional season and
// episode labels, byline and date.
func CoverParagraphs(c screenplay.Cover, style HouseStyle) []Paragraph {
	blank := Paragraph{Style: StyleNormal}
	var ps []Paragraph
	for i := 0; i < style.CoverTopPadding; i++ {
		ps = append(ps, blank)
	}
	ps = append(ps, Paragraph{Style: StyleCoverTitle, Text: c.Title})
	if c.Season != "" {
		ps = append(ps, Paragraph{Style: StyleCoverBy, Text: c.Season})
	}
	if c.Episode != "" {
		ps = append(ps, Paragraph{Style: StyleCoverBy, Text: c.Episode})
	}
	ps = append(ps,
		blank,
		Paragraph{Style: StyleCoverBy, Text: c.ByLine},
		Paragraph{Style: StyleCoverBy, Text: c.Author},
	)
	if !c.Date.IsZero() {
		ps = append(ps, blank, Paragraph{Style: StyleCoverBy, Text: c.Date.Format(style.DateLayout)})
	}
	return ps
}
