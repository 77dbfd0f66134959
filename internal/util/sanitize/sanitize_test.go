package sanitize

import (
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "SH010", "SH010"},
		{"keeps allowed punctuation", "shot_010-v2.final", "shot_010-v2.final"},
		{"drops slashes", "ep01/seq02", "ep01seq02"},
		{"drops windows separators", `C:\temp\x`, "Ctempx"},
		{"trims surrounding spaces", "  Hero Asset  ", "Hero Asset"},
		{"keeps inner spaces", "Main  Character", "Main  Character"},
		{"unicode letters", "Épisode 1", "Épisode 1"},
		{"cjk", "ショット", "ショット"},
		{"zero width removed", "SQ\u200B01", "SQ01"},
		{"empty", "", Placeholder},
		{"only symbols", "***///", Placeholder},
		{"only spaces", "    ", Placeholder},
		{"dot", ".", Placeholder},
		{"dot dot", "..", Placeholder},
		{"traversal", "../../etc", "....etc"},
		{"tabs and newlines dropped", "a\tb\nc", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Name(tt.input)
			if got != tt.expected {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNameIdempotentAndNonEmpty(t *testing.T) {
	inputs := []string{
		"", " ", ".", "..", "...", " . ", "a", "A b", "x/y\\z", "\x00\x01",
		"名前 テスト", "shot 010 (retake)", "  -_-  ", "Unnamed", "ep.01..",
		"\u00BD half", "file.name.ext", strings.Repeat("é", 40), "\t\n",
	}
	for _, in := range inputs {
		once := Name(in)
		if once == "" {
			t.Errorf("Name(%q) returned empty string", in)
		}
		if twice := Name(once); twice != once {
			t.Errorf("Name not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
