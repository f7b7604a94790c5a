/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package layout

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Twips are twentieths of a point; 1440 twips make an inch. All physical
// measures of a house style use this unit so DOCX values are exact.
type Twips int

const (
	TwipsPerInch  = 1440
	TwipsPerPoint = 20
)

// Inches converts inches to twips, rounding to the nearest twip.
func Inches(in float64) Twips { return Twips(math.Round(in * TwipsPerInch)) }

// Points returns t in points.
func (t Twips) Points() float64 { return float64(t) / TwipsPerPoint }

// InchesValue returns t in inches.
func (t Twips) InchesValue() float64 { return float64(t) / TwipsPerInch }

// StyleID names a paragraph style. The ids double as DOCX style ids.
type StyleID string

const (
	StyleNormal        StyleID = "Normal"
	StyleCoverTitle    StyleID = "CoverTitle"
	StyleCoverBy       StyleID = "CoverBy"
	StyleSceneSlug     StyleID = "SceneSlug"
	StyleAction        StyleID = "Action"
	StyleCharacter     StyleID = "Character"
	StyleDialogue      StyleID = "Dialogue"
	StyleParenthetical StyleID = "Parenthetical"
)

// StyleIDs lists the paragraph styles in a stable order.
func StyleIDs() []StyleID {
	return []StyleID{
		StyleNormal, StyleCoverTitle, StyleCoverBy, StyleSceneSlug,
		StyleAction, StyleCharacter, StyleDialogue, StyleParenthetical,
	}
}

// Alignment of a paragraph within its indents.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Indent is measured from the page margins.
type Indent struct {
	Left  Twips
	Right Twips
}

// ParagraphStyle holds the fixed parameters of one style.
type ParagraphStyle struct {
	Indent     Indent
	Align      Alignment
	SpaceAfter Twips
}

// Margins of a page.
type Margins struct {
	Top, Bottom, Left, Right Twips
}

// Page geometry.
type Page struct {
	Width, Height Twips
	Margins       Margins
}

// ContentWidth is the width between the left and right margins.
func (p Page) ContentWidth() Twips { return p.Width - p.Margins.Left - p.Margins.Right }

// Styles is the fixed table of paragraph styles.
type Styles struct {
	Normal        ParagraphStyle
	CoverTitle    ParagraphStyle
	CoverBy       ParagraphStyle
	SceneSlug     ParagraphStyle
	Action        ParagraphStyle
	Character     ParagraphStyle
	Dialogue      ParagraphStyle
	Parenthetical ParagraphStyle
}

// HouseStyle is the complete physical configuration of a screenplay layout.
// It is a plain value: copies never share state, so a style handed to the
// layout engine cannot be changed underneath it.
type HouseStyle struct {
	Name             string
	Font             string
	FontSizePt       float64
	CoverPage        Page
	BodyPage         Page
	Styles           Styles
	CoverTopPadding  int    // blank lines above the cover title
	PageNumberSuffix string // appended to the running page number
	DateLayout       string // time layout for the cover date
}

// Default returns the industry-standard screenplay house style: US Letter,
// Courier New 12 pt, 1.5 in left margin and the conventional cue, dialogue
// and parenthetical indents.
func Default() HouseStyle {
	letter := func(m Margins) Page { return Page{Width: Inches(8.5), Height: Inches(11), Margins: m} }
	return HouseStyle{
		Name:       "standard",
		Font:       "Courier New",
		FontSizePt: 12,
		CoverPage:  letter(Margins{Top: Inches(1), Bottom: Inches(1), Left: Inches(1), Right: Inches(1)}),
		BodyPage:   letter(Margins{Top: Inches(1), Bottom: Inches(1), Left: Inches(1.5), Right: Inches(1)}),
		Styles: Styles{
			Normal:        ParagraphStyle{Align: AlignLeft},
			CoverTitle:    ParagraphStyle{Align: AlignCenter, SpaceAfter: 240},
			CoverBy:       ParagraphStyle{Align: AlignCenter},
			SceneSlug:     ParagraphStyle{Align: AlignLeft, SpaceAfter: 240},
			Action:        ParagraphStyle{Align: AlignLeft},
			Character:     ParagraphStyle{Align: AlignLeft, Indent: Indent{Left: Inches(2.7)}},
			Dialogue:      ParagraphStyle{Align: AlignLeft, Indent: Indent{Left: Inches(1.4), Right: Inches(1.0)}},
			Parenthetical: ParagraphStyle{Align: AlignLeft, Indent: Indent{Left: Inches(2.1), Right: Inches(1.0)}},
		},
		CoverTopPadding:  4,
		PageNumberSuffix: ".",
		DateLayout:       "1/2/2006",
	}
}

// Style returns the parameters for id; unknown ids resolve to Normal.
func (h HouseStyle) Style(id StyleID) ParagraphStyle {
	switch id {
	case StyleCoverTitle:
		return h.Styles.CoverTitle
	case StyleCoverBy:
		return h.Styles.CoverBy
	case StyleSceneSlug:
		return h.Styles.SceneSlug
	case StyleAction:
		return h.Styles.Action
	case StyleCharacter:
		return h.Styles.Character
	case StyleDialogue:
		return h.Styles.Dialogue
	case StyleParenthetical:
		return h.Styles.Parenthetical
	default:
		return h.Styles.Normal
	}
}

func (h *HouseStyle) styleRef(id StyleID) *ParagraphStyle {
	switch id {
	case StyleNormal:
		return &h.Styles.Normal
	case StyleCoverTitle:
		return &h.Styles.CoverTitle
	case StyleCoverBy:
		return &h.Styles.CoverBy
	case StyleSceneSlug:
		return &h.Styles.SceneSlug
	case StyleAction:
		return &h.Styles.Action
	case StyleCharacter:
		return &h.Styles.Character
	case StyleDialogue:
		return &h.Styles.Dialogue
	case StyleParenthetical:
		return &h.Styles.Parenthetical
	}
	return nil
}

// FontSizeHalfPoints is the font size in the half-point unit used by DOCX.
func (h HouseStyle) FontSizeHalfPoints() int { return int(math.Round(h.FontSizePt * 2)) }

// Pitch is the advance of one character of the fixed-width font. Courier
// glyphs are 0.6 em wide, i.e. ten characters per inch at 12 pt.
func (h HouseStyle) Pitch() Twips { return Twips(math.Round(h.FontSizePt * 0.6 * TwipsPerPoint)) }

// LineHeight is the height of one line of text.
func (h HouseStyle) LineHeight() Twips { return Twips(math.Round(h.FontSizePt * TwipsPerPoint)) }

// Columns converts a width to whole characters of the fixed-width font.
func (h HouseStyle) Columns(w Twips) int {
	p := h.Pitch()
	if p <= 0 {
		return 0
	}
	return int(w / p)
}

// PageLabel renders the running header for page n.
func (h HouseStyle) PageLabel(n int) string { return strconv.Itoa(n) + h.PageNumberSuffix }

// Validate checks that the style describes a printable page.
func (h HouseStyle) Validate() error {
	var errs []error
	if strings.TrimSpace(h.Font) == "" {
		errs = append(errs, errors.New("font is required"))
	}
	if h.FontSizePt <= 0 {
		errs = append(errs, fmt.Errorf("font size must be positive, got %v", h.FontSizePt))
	}
	if h.CoverTopPadding < 0 {
		errs = append(errs, errors.New("cover top padding must not be negative"))
	}
	for name, p := range map[string]Page{"cover": h.CoverPage, "body": h.BodyPage} {
		m := p.Margins
		if m.Top < 0 || m.Bottom < 0 || m.Left < 0 || m.Right < 0 {
			errs = append(errs, fmt.Errorf("%s page: margins must not be negative", name))
		}
		if p.ContentWidth() <= 0 || p.Height-m.Top-m.Bottom <= 0 {
			errs = append(errs, fmt.Errorf("%s page: margins leave no room for text", name))
		}
	}
	column := h.BodyPage.ContentWidth()
	for _, id := range StyleIDs() {
		st := h.Style(id)
		if st.Indent.Left < 0 || st.Indent.Right < 0 || st.SpaceAfter < 0 {
			errs = append(errs, fmt.Errorf("style %s: indents and spacing must not be negative", id))
		}
		if st.Indent.Left+st.Indent.Right >= column {
			errs = append(errs, fmt.Errorf("style %s: indents leave no room for text", id))
		}
		switch st.Align {
		case AlignLeft, AlignCenter, AlignRight:
		default:
			errs = append(errs, fmt.Errorf("style %s: unknown alignment %q", id, st.Align))
		}
	}
	return errors.Join(errs...)
}

// houseStyleFile is the YAML shape of a house style. Lengths are in inches so
// files stay readable; any omitted field keeps the default.
type houseStyleFile struct {
	Name             string                `yaml:"name"`
	Font             string                `yaml:"font"`
	FontSizePt       *float64              `yaml:"font_size_pt"`
	CoverPage        *pageFile             `yaml:"cover_page"`
	BodyPage         *pageFile             `yaml:"body_page"`
	Styles           map[StyleID]styleFile `yaml:"styles"`
	CoverTopPadding  *int                  `yaml:"cover_top_padding"`
	PageNumberSuffix *string               `yaml:"page_number_suffix"`
	DateLayout       string                `yaml:"date_layout"`
}

type pageFile struct {
	WidthIn  *float64 `yaml:"width_in"`
	HeightIn *float64 `yaml:"height_in"`
	Margins  struct {
		Top    *float64 `yaml:"top"`
		Bottom *float64 `yaml:"bottom"`
		Left   *float64 `yaml:"left"`
		Right  *float64 `yaml:"right"`
	} `yaml:"margins_in"`
}

type styleFile struct {
	LeftIn       *float64  `yaml:"left_in"`
	RightIn      *float64  `yaml:"right_in"`
	SpaceAfterPt *float64  `yaml:"space_after_pt"`
	Align        Alignment `yaml:"align"`
}

// ParseHouseStyle reads YAML overrides on top of Default and validates the
// result.
func ParseHouseStyle(data []byte) (HouseStyle, error) {
	var f houseStyleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return HouseStyle{}, fmt.Errorf("parse house style: %w", err)
	}
	h := Default()
	if f.Name != "" {
		h.Name = f.Name
	}
	if f.Font != "" {
		h.Font = f.Font
	}
	if f.FontSizePt != nil {
		h.FontSizePt = *f.FontSizePt
	}
	f.CoverPage.applyTo(&h.CoverPage)
	f.BodyPage.applyTo(&h.BodyPage)
	for id, sf := range f.Styles {
		dst := h.styleRef(id)
		if dst == nil {
			return HouseStyle{}, fmt.Errorf("parse house style: unknown style %q", id)
		}
		setInches(&dst.Indent.Left, sf.LeftIn)
		setInches(&dst.Indent.Right, sf.RightIn)
		if sf.SpaceAfterPt != nil {
			dst.SpaceAfter = Twips(math.Round(*sf.SpaceAfterPt * TwipsPerPoint))
		}
		if sf.Align != "" {
			dst.Align = sf.Align
		}
	}
	if f.CoverTopPadding != nil {
		h.CoverTopPadding = *f.CoverTopPadding
	}
	if f.PageNumberSuffix != nil {
		h.PageNumberSuffix = *f.PageNumberSuffix
	}
	if f.DateLayout != "" {
		h.DateLayout = f.DateLayout
	}
	if err := h.Validate(); err != nil {
		return HouseStyle{}, fmt.Errorf("invalid house style: %w", err)
	}
	return h, nil
}

// LoadHouseStyle reads a YAML house style file. An empty path yields Default.
func LoadHouseStyle(path string) (HouseStyle, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return HouseStyle{}, fmt.Errorf("read house style: %w", err)
	}
	return ParseHouseStyle(data)
}

func (pf *pageFile) applyTo(p *Page) {
	if pf == nil {
		return
	}
	setInches(&p.Width, pf.WidthIn)
	setInches(&p.Height, pf.HeightIn)
	setInches(&p.Margins.Top, pf.Margins.Top)
	setInches(&p.Margins.Bottom, pf.Margins.Bottom)
	setInches(&p.Margins.Left, pf.Margins.Left)
	setInches(&p.Margins.Right, pf.Margins.Right)
}

func setInches(dst *Twips, v *float64) {
	if v != nil {
		*dst = Inches(*v)
	}
}
