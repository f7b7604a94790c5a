/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

// Fixed-pitch line breaking. Widths are measured with a monospaced face so a
// column count maps directly onto the typewriter grid of a screenplay page.

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// Provider supplies the face used for measurement.
type Provider interface {
	Face() font.Face
}

// MonospaceProvider uses x/image basicfont Face7x13; every glyph has the same
// advance, which is all column arithmetic needs.
type MonospaceProvider struct{}

func (MonospaceProvider) Face() font.Face { return basicfont.Face7x13 }

// Wrapper breaks text on spaces into lines of at most a given number of
// columns. Words longer than a line are kept whole on their own line; it does
// not hyphenate.
type Wrapper struct{ Provider Provider }

func NewWrapper(p Provider) *Wrapper { return &Wrapper{Provider: p} }

// Wrap breaks text into lines of at most columns characters. Explicit "\n"
// breaks are kept. Trailing spaces are dropped from each line.
func (w *Wrapper) Wrap(text string, columns int) []string {
	p := w.Provider
	if p == nil {
		p = MonospaceProvider{}
	}
	d := &font.Drawer{Face: p.Face()}
	maxWidth := advance(d, "M") * columns

	var out []string
	for _, para := range strings.Split(text, "\n") {
		var (
			cur   strings.Builder
			width int
		)
		flush := func() {
			out = append(out, strings.TrimRight(cur.String(), " "))
			cur.Reset()
			width = 0
		}
		words := strings.Split(para, " ")
		for i, word := range words {
			ww := advance(d, word)
			if width > 0 && columns > 0 && width+ww > maxWidth {
				flush()
			}
			cur.WriteString(word)
			width += ww
			if i < len(words)-1 {
				cur.WriteByte(' ')
				width += advance(d, " ")
			}
		}
		flush()
	}
	return out
}

func advance(d *font.Drawer, s string) int {
	return int(d.MeasureString(s) >> 6) // fixed.Int26_6 to px
}
