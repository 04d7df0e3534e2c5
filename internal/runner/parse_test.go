package runner

import (
	"strings"
	"testing"
)

func TestParseSceneBlocks(t *testing.T) {
	raw := `Scene 1: The Spark
A young inventor stares at a glowing filament in a cluttered workshop.

Scene 2: The Setback
The prototype bursts into smoke as investors walk out of the room.

Scene 3: The Triumph
Crowds gather under electric streetlights glowing for the first time.`

	blocks, err := parseSceneBlocks(raw, 3)
	if err != nil {
		t.Fatalf("parseSceneBlocks returned error: %v", err)
	}
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if blocks[0].Index != 1 || blocks[0].Title != "The Spark" {
		t.Errorf("unexpected first block: %+v", blocks[0])
	}
	if !strings.Contains(blocks[1].Body, "bursts into smoke") {
		t.Errorf("second block body missing text: %q", blocks[1].Body)
	}
	if blocks[2].Index != 3 {
		t.Errorf("expected third block index 3, got %d", blocks[2].Index)
	}
}

func TestParseSceneBlocksAcceptsMarkdownHeaders(t *testing.T) {
	raw := "## Scene 1: Departure\nA ship leaves the harbor at dawn.\n\n**Scene 2: Storm**\nWaves crash over the deck."

	blocks, err := parseSceneBlocks(raw, 2)
	if err != nil {
		t.Fatalf("parseSceneBlocks returned error: %v", err)
	}
	if blocks[0].Title != "Departure" {
		t.Errorf("expected title without markdown markers, got %q", blocks[0].Title)
	}
	if blocks[1].Title != "Storm" {
		t.Errorf("expected trailing bold marker stripped, got %q", blocks[1].Title)
	}
}

func TestParseSceneBlocksRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{
			name: "no headers",
			raw:  "Once upon a time there was a story without any markers.",
			want: 3,
		},
		{
			name: "count mismatch",
			raw:  "Scene 1: One\nbody\n\nScene 2: Two\nbody",
			want: 3,
		},
		{
			name: "out of order",
			raw:  "Scene 2: Two\nbody\n\nScene 1: One\nbody",
			want: 2,
		},
		{
			name: "duplicate number",
			raw:  "Scene 1: One\nbody\n\nScene 1: Again\nbody",
			want: 2,
		},
		{
			name: "empty body",
			raw:  "Scene 1: One\nbody\n\nScene 2: Two\n",
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseSceneBlocks(tt.raw, tt.want); err == nil {
				t.Errorf("expected error for %s input", tt.name)
			}
		})
	}
}

func TestSplitVisualStyle(t *testing.T) {
	body := `Visual: A lone astronaut drifts above a blue planet, tether glinting in sunlight.
The capsule hatch hangs open behind her.
Style: retro style with halftone shading and faded colors.`

	visual, style := splitVisualStyle(body, "retro")
	if !strings.Contains(visual, "lone astronaut") || !strings.Contains(visual, "hatch hangs open") {
		t.Errorf("visual lost content: %q", visual)
	}
	if strings.Contains(visual, "halftone") {
		t.Errorf("style text leaked into visual: %q", visual)
	}
	if !strings.Contains(style, "halftone shading") {
		t.Errorf("style missing content: %q", style)
	}
}

func TestSplitVisualStyleFallsBackToRequestedStyle(t *testing.T) {
	visual, style := splitVisualStyle("A quiet village square at dusk.", "noir")
	if visual != "A quiet village square at dusk." {
		t.Errorf("unexpected visual: %q", visual)
	}
	if style != "noir style" {
		t.Errorf("expected fallback style, got %q", style)
	}
}

func TestSplitVisualStyleStripsDialogAndQuotes(t *testing.T) {
	body := `Visual: Two scientists argue over a chalkboard full of equations.
Dialog: "We must publish now!"
"Never without proof."
Narrator: The debate raged on.
Chalk dust drifts in the lamplight.`

	visual, _ := splitVisualStyle(body, "european")
	if strings.Contains(visual, "publish now") || strings.Contains(visual, "Never without proof") {
		t.Errorf("dialog lines leaked into visual: %q", visual)
	}
	if strings.Contains(visual, "debate raged") {
		t.Errorf("narrator line leaked into visual: %q", visual)
	}
	if !strings.Contains(visual, "Chalk dust drifts") {
		t.Errorf("descriptive line was lost: %q", visual)
	}
}

func TestCleanNarration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"A hero rises."`, "A hero rises."},
		{"  plain text  ", "plain text"},
		{`" spaced quotes "`, "spaced quotes"},
	}
	for _, tt := range tests {
		if got := cleanNarration(tt.in); got != tt.want {
			t.Errorf("cleanNarration(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateContent(t *testing.T) {
	if got := truncateContent("short", 100); got != "short" {
		t.Errorf("short input should pass through, got %q", got)
	}
	if got := truncateContent("abcdef", 0); got != "abcdef" {
		t.Errorf("zero max should disable truncation, got %q", got)
	}

	got := truncateContent("こんにちは世界", 5)
	if got != "こんにちは..." {
		t.Errorf("expected rune-safe truncation, got %q", got)
	}
}
