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
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"scenewriter/internal/layout"
)

// pdfFont is the core font used for all text; it is metric-compatible with
// Courier New and needs no embedding.
const pdfFont = "Courier"

func pt(t layout.Twips) float64 { return t.Points() }

// RenderPDF writes doc as a PDF in points. Lines are broken on the same
// fixed-pitch grid as the plain-text preview so both agree line for line.
func RenderPDF(doc layout.Document) ([]byte, error) {
	h := doc.Style
	body := h.BodyPage
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pt(body.Width), Ht: pt(body.Height)},
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Author, true)
	pdf.SetSubject(doc.Description, true)
	pdf.SetCreator("scenewriter", false)
	if !doc.Created.IsZero() {
		pdf.SetCreationDate(doc.Created.UTC())
		pdf.SetModificationDate(doc.Created.UTC())
	}
	lineH := pt(h.LineHeight())
	pdf.SetFont(pdfFont, "", h.FontSizePt)

	var (
		cur       layout.Section
		firstPage int
	)
	pdf.SetHeaderFuncMode(func() {
		if !cur.Numbered {
			return
		}
		m := cur.Page.Margins
		label := h.PageLabel(pdf.PageNo() - firstPage + cur.StartPage)
		pdf.SetXY(pt(m.Left), pt(headerDistance))
		pdf.CellFormat(pt(cur.Page.ContentWidth()), lineH, tr(label), "", 0, "R", false, 0, "")
	}, true)

	for _, sec := range doc.Sections {
		if len(sec.Paragraphs) == 0 {
			continue
		}
		cur = sec
		m := sec.Page.Margins
		pdf.SetMargins(pt(m.Left), pt(m.Top), pt(m.Right))
		pdf.SetAutoPageBreak(true, pt(m.Bottom))
		firstPage = pdf.PageNo() + 1
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: pt(sec.Page.Width), Ht: pt(sec.Page.Height)})

		pitch := pt(h.Pitch())
		for _, p := range sec.Paragraphs {
			lines, offsets := styledLines(h, sec, p)
			for i, line := range lines {
				if line == "" {
					pdf.Ln(lineH)
					continue
				}
				pdf.SetX(pt(m.Left) + float64(offsets[i])*pitch)
				w := float64(len([]rune(line))) * pitch
				pdf.CellFormat(w, lineH, tr(line), "", 1, "L", false, 0, "")
			}
			if n := spaceLines(h, h.Style(p.Style).SpaceAfter); n > 0 {
				pdf.Ln(float64(n) * lineH)
			}
		}
	}
	if pdf.PageCount() == 0 {
		pdf.AddPage()
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
