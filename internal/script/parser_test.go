/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegments_ActionAndDialogue(t *testing.T) {
	input := "He enters.\n\n@: Joe \nHi.\n:@\nShe leaves."
	segs := Segments(input)
	require.Len(t, segs, 3)

	assert.Equal(t, SegmentAction, segs[0].Kind)
	assert.Equal(t, []string{"He enters.", ""}, segs[0].Lines)
	assert.Equal(t, 1, segs[0].LineNo)

	assert.Equal(t, SegmentDialogue, segs[1].Kind)
	assert.Equal(t, "Joe", segs[1].Cue)
	assert.Equal(t, []string{"Hi."}, segs[1].Lines)
	assert.Equal(t, 3, segs[1].LineNo)

	assert.Equal(t, SegmentAction, segs[2].Kind)
	assert.Equal(t, []string{"She leaves."}, segs[2].Lines)
	assert.Equal(t, 6, segs[2].LineNo)
}

func TestSegments_CRLFAndTrailingNewline(t *testing.T) {
	segs := Segments("@:ANA\r\nOla\r\n:@\r\n")
	require.Len(t, segs, 1)
	assert.Equal(t, []string{"Ola"}, segs[0].Lines)
}

func TestSegments_CueInsideOpenBlockIsContent(t *testing.T) {
	segs := Segments("@:JOE\nHi.\n@:ANA\nHey.\n:@")
	require.Len(t, segs, 1)
	assert.Equal(t, "JOE", segs[0].Cue)
	assert.Equal(t, []string{"Hi.", "@:ANA", "Hey."}, segs[0].Lines)

	got := Parse("@:JOE\nHi\n@:BOB\nYo\n:@")
	assert.Equal(t, []Block{Character{Name: "JOE"}, Dialogue{Text: "Hi\n@:BOB\nYo"}}, got)
}

func TestParse_EndToEndKitchen(t *testing.T) {
	got := Parse("He enters.\n\n@:JOE\nHi.\n(smiles)\nBye.\n:@")
	want := []Block{
		Action{Text: "He enters."},
		Blank{},
		Character{Name: "JOE"},
		Dialogue{Text: "Hi."},
		Parenthetical{Text: "(smiles)"},
		Dialogue{Text: "Bye."},
	}
	assert.Equal(t, want, got)
}

func TestParse_NoMarkerYieldsActionAndBlankOnly(t *testing.T) {
	inputs := []string{
		"Just prose.",
		"Line one\nline two\n\nParagraph two.",
		"  \n\nindented\n\n\n",
		"A stray end :@\n:@\nstill action",
		"(not a parenthetical outside dialogue)",
	}
	for _, in := range inputs {
		for _, b := range Parse(in) {
			switch b.(type) {
			case Action, Blank:
			default:
				t.Fatalf("input %q produced %T", in, b)
			}
		}
	}
}

func TestParse_StrayEndMarkerIsAction(t *testing.T) {
	got := Parse(":@\nThe door closes.")
	assert.Equal(t, []Block{Action{Text: ":@\nThe door closes."}}, got)
}

func TestParse_UnterminatedBlockMatchesTerminated(t *testing.T) {
	assert.Equal(t, Parse("@:JOE\nHello\n:@"), Parse("@:JOE\nHello"))
	assert.Equal(t, []Block{Character{Name: "JOE"}, Dialogue{Text: "Hello"}}, Parse("@:JOE\nHello"))
}

func TestParse_ParentheticalDetection(t *testing.T) {
	got := Parse("@:JOE\n(smiles)\n:@")
	assert.Equal(t, []Block{Character{Name: "JOE"}, Parenthetical{Text: "(smiles)"}}, got)

	got = Parse("@:JOE\n(smiles) and waves\n:@")
	assert.Equal(t, []Block{Character{Name: "JOE"}, Dialogue{Text: "(smiles) and waves"}}, got)

	assert.True(t, IsParenthetical("  (beat)  "))
	assert.False(t, IsParenthetical("beat)"))
}

func TestParse_OneCharacterPerCueInSourceOrder(t *testing.T) {
	in := "@:joe\nHi.\n:@\nA pause.\n@:Ana\n(quietly)\nHello.\nHow are you?\n:@"
	got := Parse(in)
	want := []Block{
		Character{Name: "JOE"},
		Dialogue{Text: "Hi."},
		Action{Text: "A pause."},
		Character{Name: "ANA"},
		Parenthetical{Text: "(quietly)"},
		Dialogue{Text: "Hello.\nHow are you?"},
	}
	assert.Equal(t, want, got)
	assertCueInvariant(t, got)
}

// One Blank per blank line is intentional: it preserves the writer's vertical
// spacing exactly instead of collapsing runs.
func TestParse_ConsecutiveBlankLinesEachBecomeBlank(t *testing.T) {
	got := Parse("First.\n\n\n\nSecond.")
	want := []Block{
		Action{Text: "First."},
		Blank{}, Blank{}, Blank{},
		Action{Text: "Second."},
	}
	assert.Equal(t, want, got)
}

func TestParse_BlankLinesInsideDialogue(t *testing.T) {
	got := Parse("@:JOE\n\nHi.\n\nBye.\n:@")
	want := []Block{
		Character{Name: "JOE"},
		Dialogue{Text: "Hi."},
		Blank{},
		Dialogue{Text: "Bye."},
	}
	assert.Equal(t, want, got)
	assertCueInvariant(t, got)
}

func TestParse_NamelessCueIsAction(t *testing.T) {
	got := Parse("@:\n:@\n@:  \n\n:@")
	want := []Block{
		Action{Text: "@:\n:@\n@:"},
		Blank{},
		Action{Text: ":@"},
	}
	assert.Equal(t, want, got)
}

func TestParse_EmptyBlockKeepsCue(t *testing.T) {
	got := Parse("@:joe\n:@\n@:ana\n\n:@")
	want := []Block{
		Character{Name: "JOE"},
		Dialogue{},
		Character{Name: "ANA"},
		Dialogue{},
	}
	assert.Equal(t, want, got)
	assertCueInvariant(t, got)
}

func TestParseDialogue_EmptyCueFallsBack(t *testing.T) {
	assert.Equal(t, []Block{Character{Name: DefaultCue}, Dialogue{Text: "Hi."}}, ParseDialogue("  ", []string{"Hi."}))
}

func TestParse_LinesAreTrimmedAndMultilineActionKept(t *testing.T) {
	got := Parse("  Rain falls.  \n\tThunder.")
	assert.Equal(t, []Block{Action{Text: "Rain falls.\nThunder."}}, got)
}

func TestParse_EmptyContent(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse(" \n\t\n"))
}

func TestParse_IndependentCalls(t *testing.T) {
	// An unterminated block in one scene must not leak into the next.
	_ = Parse("@:JOE\nHello")
	assert.Equal(t, []Block{Action{Text: "Quiet."}}, Parse("Quiet."))
}

func assertCueInvariant(t *testing.T, blocks []Block) {
	t.Helper()
	for i, b := range blocks {
		if _, ok := b.(Character); !ok {
			continue
		}
		require.Less(t, i+1, len(blocks), "cue at end of sequence")
		switch blocks[i+1].(type) {
		case Dialogue, Parenthetical:
		default:
			t.Fatalf("cue at %d followed by %T", i, blocks[i+1])
		}
	}
}
