/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"scenewriter/internal/layout"
)

// WordprocessingML namespaces.
const (
	nsW     = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsRels  = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsTypes = "http://schemas.openxmlformats.org/package/2006/content-types"

	relDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relCore     = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relApp      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties"
	relStyles   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relHeader   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"

	ctMain   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ctStyles = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
	ctHeader = "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"
	ctCore   = "application/vnd.openxmlformats-package.core-properties+xml"
	ctApp    = "application/vnd.openxmlformats-officedocument.extended-properties+xml"

	headerRelID = "rIdHeader1"
	// header and footer distance from the page edge
	headerDistance layout.Twips = 720
)

const xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// zipEpoch stamps entries when the document carries no date; zip cannot
// represent earlier times.
var zipEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// RenderDOCX writes doc as a WordprocessingML package. Entries are written in
// a fixed order and stamped with the document date, so equal documents give
// equal bytes.
func RenderDOCX(doc layout.Document) ([]byte, error) {
	stamp := doc.Created.UTC()
	if stamp.Before(zipEpoch) {
		stamp = zipEpoch
	}
	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", contentTypesXML()},
		{"_rels/.rels", packageRelsXML()},
		{"docProps/core.xml", corePropsXML(doc)},
		{"docProps/app.xml", appPropsXML()},
		{"word/_rels/document.xml.rels", documentRelsXML()},
		{"word/styles.xml", stylesXML(doc.Style)},
		{"word/header1.xml", headerXML(doc.Style)},
		{"word/document.xml", documentXML(doc)},
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: stamp})
		if err != nil {
			return nil, fmt.Errorf("zip add %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.data)); err != nil {
			return nil, fmt.Errorf("zip write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func contentTypesXML() string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<Types xmlns="%s">`, nsTypes)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	for _, o := range [][2]string{
		{"/word/document.xml", ctMain},
		{"/word/styles.xml", ctStyles},
		{"/word/header1.xml", ctHeader},
		{"/docProps/core.xml", ctCore},
		{"/docProps/app.xml", ctApp},
	} {
		fmt.Fprintf(&b, `<Override PartName="%s" ContentType="%s"/>`, o[0], o[1])
	}
	b.WriteString(`</Types>`)
	return b.String()
}

func packageRelsXML() string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<Relationships xmlns="%s">`, nsRels)
	fmt.Fprintf(&b, `<Relationship Id="rId1" Type="%s" Target="word/document.xml"/>`, relDocument)
	fmt.Fprintf(&b, `<Relationship Id="rId2" Type="%s" Target="docProps/core.xml"/>`, relCore)
	fmt.Fprintf(&b, `<Relationship Id="rId3" Type="%s" Target="docProps/app.xml"/>`, relApp)
	b.WriteString(`</Relationships>`)
	return b.String()
}

func documentRelsXML() string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<Relationships xmlns="%s">`, nsRels)
	fmt.Fprintf(&b, `<Relationship Id="rIdStyles" Type="%s" Target="styles.xml"/>`, relStyles)
	fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="header1.xml"/>`, headerRelID, relHeader)
	b.WriteString(`</Relationships>`)
	return b.String()
}

func corePropsXML(doc layout.Document) string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	b.WriteString(`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`)
	fmt.Fprintf(&b, `<dc:title>%s</dc:title>`, xmlEsc(doc.Title))
	fmt.Fprintf(&b, `<dc:creator>%s</dc:creator>`, xmlEsc(doc.Author))
	fmt.Fprintf(&b, `<dc:description>%s</dc:description>`, xmlEsc(doc.Description))
	if !doc.Created.IsZero() {
		ts := doc.Created.UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, `<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>`, ts)
		fmt.Fprintf(&b, `<dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified>`, ts)
	}
	b.WriteString(`</cp:coreProperties>`)
	return b.String()
}

func appPropsXML() string {
	return xmlDecl + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
		`<Application>scenewriter</Application></Properties>`
}

func stylesXML(h layout.HouseStyle) string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<w:styles xmlns:w="%s">`, nsW)
	font := xmlEsc(h.Font)
	sz := h.FontSizeHalfPoints()
	fmt.Fprintf(&b, `<w:docDefaults><w:rPrDefault><w:rPr>`+
		`<w:rFonts w:ascii="%[1]s" w:hAnsi="%[1]s" w:cs="%[1]s" w:eastAsia="%[1]s"/>`+
		`<w:sz w:val="%[2]d"/><w:szCs w:val="%[2]d"/></w:rPr></w:rPrDefault>`+
		`<w:pPrDefault><w:pPr><w:spacing w:before="0" w:after="0" w:line="240" w:lineRule="auto"/></w:pPr></w:pPrDefault>`+
		`</w:docDefaults>`, font, sz)
	for _, id := range layout.StyleIDs() {
		st := h.Style(id)
		if id == layout.StyleNormal {
			fmt.Fprintf(&b, `<w:style w:type="paragraph" w:default="1" w:styleId="%s"><w:name w:val="%s"/><w:qFormat/>`, id, id)
		} else {
			fmt.Fprintf(&b, `<w:style w:type="paragraph" w:customStyle="1" w:styleId="%s"><w:name w:val="%s"/>`+
				`<w:basedOn w:val="%s"/><w:qFormat/>`, id, id, layout.StyleNormal)
		}
		b.WriteString(paragraphPropsXML(st))
		b.WriteString(`</w:style>`)
	}
	b.WriteString(`</w:styles>`)
	return b.String()
}

func paragraphPropsXML(st layout.ParagraphStyle) string {
	var b strings.Builder
	b.WriteString(`<w:pPr>`)
	if st.SpaceAfter > 0 {
		fmt.Fprintf(&b, `<w:spacing w:after="%d"/>`, st.SpaceAfter)
	}
	if st.Indent.Left > 0 || st.Indent.Right > 0 {
		fmt.Fprintf(&b, `<w:ind w:left="%d" w:right="%d"/>`, st.Indent.Left, st.Indent.Right)
	}
	fmt.Fprintf(&b, `<w:jc w:val="%s"/>`, st.Align)
	b.WriteString(`</w:pPr>`)
	return b.String()
}

func headerXML(h layout.HouseStyle) string {
	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<w:hdr xmlns:w="%s" xmlns:r="%s"><w:p><w:pPr><w:jc w:val="right"/></w:pPr>`, nsW, nsR)
	b.WriteString(`<w:r><w:fldChar w:fldCharType="begin"/></w:r>`)
	b.WriteString(`<w:r><w:instrText xml:space="preserve"> PAGE </w:instrText></w:r>`)
	b.WriteString(`<w:r><w:fldChar w:fldCharType="separate"/></w:r>`)
	b.WriteString(`<w:r><w:t>1</w:t></w:r>`)
	b.WriteString(`<w:r><w:fldChar w:fldCharType="end"/></w:r>`)
	if h.PageNumberSuffix != "" {
		fmt.Fprintf(&b, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, xmlEsc(h.PageNumberSuffix))
	}
	b.WriteString(`</w:p></w:hdr>`)
	return b.String()
}

// documentXML writes the body. Every section but the last closes with a
// sectPr inside its final paragraph; the last section's sectPr ends the body.
// Sections without paragraphs are skipped so a cover-only export has one page.
func documentXML(doc layout.Document) string {
	var sections []layout.Section
	for _, s := range doc.Sections {
		if len(s.Paragraphs) > 0 {
			sections = append(sections, s)
		}
	}

	var b strings.Builder
	b.WriteString(xmlDecl)
	fmt.Fprintf(&b, `<w:document xmlns:w="%s" xmlns:r="%s"><w:body>`, nsW, nsR)
	for i, s := range sections {
		last := i == len(sections)-1
		for j, p := range s.Paragraphs {
			var sect string
			if !last && j == len(s.Paragraphs)-1 {
				sect = sectionPropsXML(s, i > 0)
			}
			writeParagraph(&b, p, sect)
		}
		if last {
			b.WriteString(sectionPropsXML(s, i > 0))
		}
	}
	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

func writeParagraph(b *strings.Builder, p layout.Paragraph, sectPr string) {
	fmt.Fprintf(b, `<w:p><w:pPr><w:pStyle w:val="%s"/>%s</w:pPr>`, p.Style, sectPr)
	if !p.Blank() {
		b.WriteString(`<w:r>`)
		for i, line := range p.Lines() {
			if i > 0 {
				b.WriteString(`<w:br/>`)
			}
			fmt.Fprintf(b, `<w:t xml:space="preserve">%s</w:t>`, xmlEsc(line))
		}
		b.WriteString(`</w:r>`)
	}
	b.WriteString(`</w:p>`)
}

func sectionPropsXML(s layout.Section, newPage bool) string {
	var b strings.Builder
	b.WriteString(`<w:sectPr>`)
	if s.Numbered {
		fmt.Fprintf(&b, `<w:headerReference w:type="default" r:id="%s"/>`, headerRelID)
	}
	if newPage {
		b.WriteString(`<w:type w:val="nextPage"/>`)
	}
	m := s.Page.Margins
	fmt.Fprintf(&b, `<w:pgSz w:w="%d" w:h="%d"/>`, s.Page.Width, s.Page.Height)
	fmt.Fprintf(&b, `<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="%d" w:footer="%d" w:gutter="0"/>`,
		m.Top, m.Right, m.Bottom, m.Left, headerDistance, headerDistance)
	if s.Numbered {
		start := s.StartPage
		if start < 1 {
			start = 1
		}
		fmt.Fprintf(&b, `<w:pgNumType w:start="%d"/>`, start)
	}
	b.WriteString(`</w:sectPr>`)
	return b.String()
}

func xmlEsc(s string) string {
	var b strings.Builder
	// strings.Builder never fails a write
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
