/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"scenewriter/internal/screenplay"
)

// FallbackTitle names the file when the project title is blank.
const FallbackTitle = "Project"

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Sanitize replaces every run of characters outside [A-Za-z0-9] with a single
// underscore and trims underscores from both ends.
func Sanitize(s string) string {
	return strings.Trim(unsafeRun.ReplaceAllString(s, "_"), "_")
}

// FileName builds script_<title>[_SNN][_ENN]_<YYYY-MM-DD>.<ext>. The date is
// taken in UTC; season and episode numbers are one-based and zero-padded. A
// title with nothing left after sanitizing is left out.
func FileName(title string, season, episode *screenplay.Group, date time.Time, ext Format) string {
	if strings.TrimSpace(title) == "" {
		title = FallbackTitle
	}
	parts := []string{"script"}
	if safe := Sanitize(title); safe != "" {
		parts = append(parts, safe)
	}
	if season != nil {
		parts = append(parts, fmt.Sprintf("S%02d", season.Order+1))
	}
	if episode != nil {
		parts = append(parts, fmt.Sprintf("E%02d", episode.Order+1))
	}
	parts = append(parts, date.UTC().Format(time.DateOnly))
	return strings.Join(parts, "_") + "." + string(ext)
}
