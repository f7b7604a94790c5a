/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export serializes an assembled screenplay. The pipeline is
// parse → assemble → lay out → render; only the last step differs per format.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"scenewriter/internal/domain"
	"scenewriter/internal/layout"
	applog "scenewriter/internal/log"
	"scenewriter/internal/screenplay"
	"scenewriter/internal/telemetry"
)

// Format is an output format and doubles as the file extension.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatTXT  Format = "txt"
)

// ErrUnknownFormat is returned for formats other than docx, pdf and txt.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat normalizes s; empty selects DOCX.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDOCX, nil
	case FormatDOCX, FormatPDF, FormatTXT:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the media type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPDF:
		return "application/pdf"
	case FormatTXT:
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}

// Request is the JSON export request accepted by the CLI and HTTP surface.
type Request struct {
	ProjectTitle string            `json:"projectTitle"`
	AuthorName   string            `json:"authorName,omitempty"`
	Season       *screenplay.Group `json:"season,omitempty"`
	Episode      *screenplay.Group `json:"episode,omitempty"`
	Scenes       []domain.Scene    `json:"scenes"`
	Date         time.Time         `json:"date,omitzero"`
}

// RequestFromSelection builds a request for a scoped bundle.
func RequestFromSelection(b *domain.Bundle, sel domain.Selection, author string, date time.Time) Request {
	return Request{
		ProjectTitle: b.Project.Name,
		AuthorName:   author,
		Season:       screenplay.SeasonGroup(sel.Season),
		Episode:      screenplay.EpisodeGroup(sel.Episode),
		Scenes:       sel.Scenes,
		Date:         date,
	}
}

// Options control rendering. The zero value exports DOCX in the default
// house style, dated now.
type Options struct {
	Format Format
	Style  *layout.HouseStyle
	Now    func() time.Time
}

func (o Options) style() layout.HouseStyle {
	if o.Style != nil {
		return *o.Style
	}
	return layout.Default()
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Artifact is a rendered document ready to be saved or served.
type Artifact struct {
	Filename    string
	Format      Format
	ContentType string
	Data        []byte
	Scenes      int
}

// Date returns the export date used for req under opts.
func (o Options) Date(req Request) time.Time {
	if req.Date.IsZero() {
		return o.now()
	}
	return req.Date
}

// FileNameFor computes the artifact filename without rendering.
func FileNameFor(req Request, opts Options) (string, error) {
	f, err := ParseFormat(string(opts.Format))
	if err != nil {
		return "", err
	}
	return FileName(req.ProjectTitle, req.Season, req.Episode, opts.Date(req), f), nil
}

// Export renders req. Identical requests with the same date produce
// identical bytes.
func Export(req Request, opts Options) (*Artifact, error) {
	l := applog.WithOperation(applog.WithComponent("export"), "export")
	f, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	style := opts.style()
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("house style: %w", err)
	}
	date := opts.Date(req)
	s := screenplay.Assemble(screenplay.Input{
		ProjectTitle: req.ProjectTitle,
		Author:       req.AuthorName,
		Season:       req.Season,
		Episode:      req.Episode,
		Scenes:       req.Scenes,
		Date:         date,
	})
	doc := layout.Build(s, style)

	var data []byte
	switch f {
	case FormatDOCX:
		data, err = RenderDOCX(doc)
	case FormatPDF:
		data, err = RenderPDF(doc)
	case FormatTXT:
		data, err = RenderText(doc)
	}
	if err != nil {
		l.Error("render failed", "format", string(f), "err", err)
		return nil, fmt.Errorf("render %s: %w", f, err)
	}

	art := &Artifact{
		Filename:    FileName(req.ProjectTitle, req.Season, req.Episode, date, f),
		Format:      f,
		ContentType: f.ContentType(),
		Data:        data,
		Scenes:      s.Scenes,
	}
	l.Info("rendered", "file", art.Filename, "scenes", art.Scenes, "blocks", len(s.Blocks), "bytes", len(data))
	telemetry.Emit("export", map[string]any{"format": string(f), "scenes": art.Scenes})
	return art, nil
}
