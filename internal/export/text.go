/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"scenewriter/internal/layout"
)

var wrapper = layout.NewWrapper(layout.MonospaceProvider{})

// styledLines wraps p to the text column of its style within sec and returns
// the lines with their column offset from the left margin.
func styledLines(h layout.HouseStyle, sec layout.Section, p layout.Paragraph) (lines []string, offsets []int) {
	st := h.Style(p.Style)
	width := sec.Page.ContentWidth() - st.Indent.Left - st.Indent.Right
	cols := h.Columns(width)
	indent := h.Columns(st.Indent.Left)
	lines = wrapper.Wrap(p.Text, cols)
	offsets = make([]int, len(lines))
	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		switch st.Align {
		case layout.AlignCenter:
			offsets[i] = indent + max(cols-n, 0)/2
		case layout.AlignRight:
			offsets[i] = indent + max(cols-n, 0)
		default:
			offsets[i] = indent
		}
	}
	return lines, offsets
}

// spaceLines converts paragraph spacing to whole lines.
func spaceLines(h layout.HouseStyle, t layout.Twips) int {
	lh := h.LineHeight()
	if lh <= 0 || t <= 0 {
		return 0
	}
	return int((t + lh/2) / lh)
}

// RenderText writes doc as a fixed-pitch plain-text preview: one character
// per column of the house style, pages separated by form feeds, running
// page numbers right-aligned above the text of numbered pages.
func RenderText(doc layout.Document) ([]byte, error) {
	h := doc.Style
	var out bytes.Buffer
	first := true
	for _, sec := range doc.Sections {
		if len(sec.Paragraphs) == 0 {
			continue
		}
		tp := &textPager{h: h, sec: sec, out: &out, page: sec.StartPage - 1}
		if !first {
			out.WriteString("\f")
		}
		first = false
		tp.newPage()
		for _, p := range sec.Paragraphs {
			lines, offsets := styledLines(h, sec, p)
			for i, line := range lines {
				tp.line(offsets[i], line)
			}
			for i := 0; i < spaceLines(h, h.Style(p.Style).SpaceAfter); i++ {
				tp.line(0, "")
			}
		}
	}
	return out.Bytes(), nil
}

type textPager struct {
	h    layout.HouseStyle
	sec  layout.Section
	out  *bytes.Buffer
	page int
	rows int
}

func (tp *textPager) capacity() int {
	m := tp.sec.Page.Margins
	lh := tp.h.LineHeight()
	if lh <= 0 {
		return 1
	}
	return max(int((tp.sec.Page.Height-m.Top-m.Bottom)/lh), 1)
}

func (tp *textPager) margin() string {
	return strings.Repeat(" ", tp.h.Columns(tp.sec.Page.Margins.Left))
}

func (tp *textPager) newPage() {
	tp.page++
	tp.rows = 0
	if !tp.sec.Numbered {
		return
	}
	label := tp.h.PageLabel(tp.page)
	cols := tp.h.Columns(tp.sec.Page.ContentWidth())
	pad := max(cols-utf8.RuneCountInString(label), 0)
	tp.out.WriteString(tp.margin() + strings.Repeat(" ", pad) + label + "\n\n")
}

func (tp *textPager) line(offset int, text string) {
	if tp.rows >= tp.capacity() {
		tp.out.WriteString("\f")
		tp.newPage()
	}
	tp.rows++
	if text == "" {
		tp.out.WriteString("\n")
		return
	}
	tp.out.WriteString(tp.margin() + strings.Repeat(" ", offset) + text + "\n")
}
