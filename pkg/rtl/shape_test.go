package rtl

import (
	"errors"
	"strings"
	"testing"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"latin untouched", "abc", "abc"},
		{"isolated letter", "ب", "ﺏ"},
		{"initial medial final", "محمد", "ﻣﺤﻤﺪ"},
		{"right-joining breaks the word", "دار", "ﺩﺍﺭ"},
		{"lam alef isolated", "لا", "ﻻ"},
		{"lam alef final", "سلام", "ﺳﻼﻡ"},
		{"hamza never joins", "ماء", "ﻣﺎﺀ"},
		{"harakat are transparent", "بَب", "ﺑَﺐ"},
		{"persian letters", "پک", "ﭘﮏ"},
		{"spaces split words", "بب بب", "ﺑﺐ ﺑﺐ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := join(tt.input); got != tt.expected {
				t.Errorf("join(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestShape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		dir      Direction
		expected string
	}{
		{"empty", "", RightToLeft, ""},
		{"latin forced ltr", "Ahmed Ben Ali", LeftToRight, "Ahmed Ben Ali"},
		{"single word", "محمد", RightToLeft, "ﺪﻤﺤﻣ"},
		{"single word auto", "محمد", Auto, "ﺪﻤﺤﻣ"},
		{"lam alef", "سلام", RightToLeft, "ﻡﻼﺳ"},
		{"two words", "بب دد", RightToLeft, "ﺩﺩ ﺐﺑ"},
		{"latin first keeps ltr paragraph", "Ahmed محمد", Auto, "Ahmed ﺪﻤﺤﻣ"},
		{"arabic first makes rtl paragraph", "محمد@example.com", Auto, "example.com@ﺪﻤﺤﻣ"},
		{"numbers keep their order", "رقم 123", RightToLeft, "123 ﻢﻗﺭ"},
		{"brackets are mirrored", "(محمد)", RightToLeft, "(ﺪﻤﺤﻣ)"},
		{"trailing space stays at the end", "محمد ", LeftToRight, "ﺪﻤﺤﻣ "},
		{"number inside arabic in ltr paragraph", "Ali محمد 12", Auto, "Ali 12 ﺪﻤﺤﻣ"},
		{"guillemets are mirrored", "«محمد»", RightToLeft, "«ﺪﻤﺤﻣ»"},
		{"paragraphs reordered separately", "بب\nدد", RightToLeft, "ﺐﺑ\nﺩﺩ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Shape(tt.input, tt.dir)
			if err != nil {
				t.Fatalf("Shape(%q) returned error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("Shape(%q, %v) = %q, want %q", tt.input, tt.dir, got, tt.expected)
			}
		})
	}
}

func TestShapeMalformed(t *testing.T) {
	inputs := []string{"\xff", "محمد\xc3", "\xed\xa0\x80"}
	for _, input := range inputs {
		got, err := Shape(input, RightToLeft)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Shape(%q) error = %v, want ErrMalformed", input, err)
		}
		if got != input {
			t.Errorf("Shape(%q) = %q, want the input unchanged", input, got)
		}
	}
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		dir      Direction
		expected string
	}{
		{"empty becomes placeholder", "", RightToLeft, Placeholder},
		{"latin is never shaped", "Ahmed", RightToLeft, "Ahmed"},
		{"arabic shaped", "محمد", RightToLeft, "ﺪﻤﺤﻣ"},
		{"malformed falls back", "محمد\xff", RightToLeft, "محمد\xff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Prepare(tt.input, tt.dir); got != tt.expected {
				t.Errorf("Prepare(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPrepareLines(t *testing.T) {
	// wrap after every word
	wrap := func(s string) []string { return strings.Fields(s) }

	t.Run("latin is wrapped as is", func(t *testing.T) {
		got := PrepareLines("a b c", RightToLeft, wrap)
		if strings.Join(got, "|") != "a|b|c" {
			t.Errorf("PrepareLines = %q", got)
		}
	})

	t.Run("empty becomes placeholder", func(t *testing.T) {
		got := PrepareLines("", Auto, wrap)
		if len(got) != 1 || got[0] != Placeholder {
			t.Errorf("PrepareLines(\"\") = %q", got)
		}
	})

	t.Run("arabic lines keep reading order", func(t *testing.T) {
		got := PrepareLines("محمد سلام", RightToLeft, wrap)
		want := []string{"ﺪﻤﺤﻣ", "ﻡﻼﺳ"}
		if len(got) != len(want) {
			t.Fatalf("PrepareLines returned %d lines, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("wrap panic falls back", func(t *testing.T) {
		calls := 0
		flaky := func(s string) []string {
			calls++
			if calls == 1 {
				panic("boom")
			}
			return []string{s}
		}
		got := PrepareLines("محمد", RightToLeft, flaky)
		if len(got) != 1 || got[0] != "محمد" {
			t.Errorf("PrepareLines fallback = %q, want unshaped text", got)
		}
	})
}
