/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Block is one typed element of a parsed scene. The set of implementations is
// closed: Action, SceneHeading, Character, Dialogue, Parenthetical and Blank.
// Consumers switch on the concrete type.
//
// Within a scene a Character block is always immediately followed by at least
// one Dialogue or Parenthetical block belonging to that cue.
type Block interface {
	block()
}

// Action is narrative prose. Text may contain "\n" for explicit line breaks.
type Action struct{ Text string }

// SceneHeading is the slug line introducing a scene. It is derived from scene
// metadata, never parsed from content.
type SceneHeading struct{ Text string }

// Character is a dialogue cue; Name is upper-cased.
type Character struct{ Name string }

// Dialogue is spoken text. Text may contain "\n" for explicit line breaks.
type Dialogue struct{ Text string }

// Parenthetical is a short direction inside dialogue, including its parentheses.
type Parenthetical struct{ Text string }

// Blank is one line of explicit vertical space from the source.
type Blank struct{}

func (Action) block()        {}
func (SceneHeading) block()  {}
func (Character) block()     {}
func (Dialogue) block()      {}
func (Parenthetical) block() {}
func (Blank) block()         {}

// SegmentKind tags a raw segment of scene text.
type SegmentKind int

const (
	SegmentAction SegmentKind = iota
	SegmentDialogue
)

func (k SegmentKind) String() string {
	if k == SegmentDialogue {
		return "DIALOGUE-BLOCK"
	}
	return "ACTION"
}

// Segment is a run of raw lines produced by the markup scanner.
// For dialogue segments Cue holds the trimmed text after "@:" and Lines the
// content between the cue line and the closing ":@" (both excluded).
type Segment struct {
	Kind   SegmentKind
	Cue    string
	Lines  []string
	LineNo int // 1-based line of the first line (the cue line for dialogue)
}
