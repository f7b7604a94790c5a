/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// Markup recognized inside scene content:
//
//	@:Name        opens a dialogue block for the character Name
//	(whispers)    a parenthetical line inside a dialogue block
//	:@            closes the dialogue block
//
// Everything else is action. Irregular markup is recovered, never rejected:
// an unterminated block closes at end of input and a ":@" with no open block
// is an ordinary action line. Inside an open block only ":@" ends it, so a
// "@:" line there is dialogue content. A "@:" with no name opens nothing.
const (
	CuePrefix  = "@:"
	EndMarker  = ":@"
	DefaultCue = "CHARACTER"
)

type scanState int

const (
	inAction scanState = iota
	inDialogue
)

// Segments splits raw scene text into action and dialogue segments in source
// order. Line endings are normalized; a single trailing newline terminates the
// last line rather than adding an empty one.
func Segments(content string) []Segment {
	text := strings.ReplaceAll(content, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}

	var (
		segs  []Segment
		cur   *Segment
		state = inAction
	)
	flush := func() {
		if cur != nil {
			segs = append(segs, *cur)
			cur = nil
		}
	}

	for i, line := range strings.Split(text, "\n") {
		switch {
		case state == inAction && isCue(line):
			flush()
			cur = &Segment{Kind: SegmentDialogue, Cue: strings.TrimSpace(line[len(CuePrefix):]), LineNo: i + 1}
			state = inDialogue
		case state == inDialogue && isEndMarker(line):
			flush()
			state = inAction
		case state == inDialogue:
			cur.Lines = append(cur.Lines, line)
		default:
			if cur == nil {
				cur = &Segment{Kind: SegmentAction, LineNo: i + 1}
			}
			cur.Lines = append(cur.Lines, line)
		}
	}
	flush()
	return segs
}

func isCue(line string) bool {
	return strings.HasPrefix(line, CuePrefix) && strings.TrimSpace(line[len(CuePrefix):]) != ""
}

func isEndMarker(line string) bool {
	return strings.TrimRight(line, " \t") == EndMarker
}

// Parse converts one scene's raw content into blocks. It is total: any input
// yields a block sequence, and whitespace-only content yields none.
func Parse(content string) []Block {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var out []Block
	for _, seg := range Segments(content) {
		if seg.Kind == SegmentDialogue {
			out = append(out, ParseDialogue(seg.Cue, seg.Lines)...)
			continue
		}
		out = append(out, ParseAction(seg.Lines)...)
	}
	return out
}

// ParseAction groups action lines by blank lines. Each run of non-blank lines
// becomes one Action and every blank line becomes one Blank, so runs of blank
// lines keep their exact height.
func ParseAction(lines []string) []Block {
	var out []Block
	for _, g := range groupByBlankLines(lines) {
		if g == nil {
			out = append(out, Blank{})
			continue
		}
		out = append(out, Action{Text: strings.Join(g, "\n")})
	}
	return out
}

// ParseDialogue emits the Character cue for a dialogue block followed by its
// content. Consecutive non-parenthetical lines share one Dialogue block.
// Blank lines before the first content line are dropped; later ones become
// Blank blocks. A block without content still gets an empty Dialogue so the
// cue is never left dangling.
func ParseDialogue(cue string, lines []string) []Block {
	name := strings.ToUpper(strings.TrimSpace(cue))
	if name == "" {
		name = DefaultCue
	}
	out := []Block{Character{Name: name}}

	groups := groupByBlankLines(lines)
	for len(groups) > 0 && groups[0] == nil {
		groups = groups[1:]
	}
	if len(groups) == 0 {
		return append(out, Dialogue{})
	}

	for _, g := range groups {
		if g == nil {
			out = append(out, Blank{})
			continue
		}
		var run []string
		flushRun := func() {
			if len(run) > 0 {
				out = append(out, Dialogue{Text: strings.Join(run, "\n")})
				run = nil
			}
		}
		for _, l := range g {
			if IsParenthetical(l) {
				flushRun()
				out = append(out, Parenthetical{Text: l})
				continue
			}
			run = append(run, l)
		}
		flushRun()
	}
	return out
}

// IsParenthetical reports whether a dialogue line is a parenthetical direction.
func IsParenthetical(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")")
}

// groupByBlankLines trims lines and splits them into runs of non-blank lines.
// Every blank line yields its own nil group.
func groupByBlankLines(lines []string) [][]string {
	var (
		groups [][]string
		cur    []string
	)
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" {
			if len(cur) > 0 {
				groups = append(groups, cur)
				cur = nil
			}
			groups = append(groups, nil)
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}
