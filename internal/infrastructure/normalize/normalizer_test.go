package normalize

import "testing"

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	n := New(Options{})
	got := n.Normalize("The\tcat \n\n  sat.")
	if got != "The cat sat." {
		t.Fatalf("Normalize() = %q", got)
	}
}

func TestNormalizeLowercase(t *testing.T) {
	n := New(Options{Lowercase: true})
	got := n.Normalize("THE Cat SAT.")
	if got != "the cat sat." {
		t.Fatalf("Normalize() = %q", got)
	}
}

func TestNormalizeStripsConfiguredPunctuation(t *testing.T) {
	n := New(Options{Punctuation: "#*_"})
	got := n.Normalize("# Title with *emphasis* and_underscores")
	if got != "Title with emphasis andunderscores" {
		t.Fatalf("Normalize() = %q", got)
	}
}

func TestNormalizeDropsControlCharacters(t *testing.T) {
	n := New(Options{})
	got := n.Normalize("a\x00b\x07c")
	if got != "abc" {
		t.Fatalf("Normalize() = %q", got)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := Default()
	in := "  The QUICK  brown\tfox -- #1  "
	first := n.Normalize(in)
	for i := 0; i < 10; i++ {
		if got := n.Normalize(in); got != first {
			t.Fatalf("Normalize() not deterministic: %q != %q", got, first)
		}
	}
}

func TestNormalizeEmptyAndWhitespaceOnly(t *testing.T) {
	n := Default()
	if got := n.Normalize(""); got != "" {
		t.Fatalf("Normalize(\"\") = %q", got)
	}
	if got := n.Normalize(" \t\n "); got != "" {
		t.Fatalf("Normalize(whitespace) = %q", got)
	}
}

func TestLengthCountsRunes(t *testing.T) {
	if got := Length("héllo"); got != 5 {
		t.Fatalf("Length() = %d, want 5", got)
	}
}
