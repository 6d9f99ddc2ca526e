package lexer

import (
	"testing"

	"github.com/splq/splq/internal/catalog"
	"github.com/splq/splq/internal/diag"
)

func scan(t *testing.T, src string) ([]Token, *diag.Collector) {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	diags := diag.NewCollector()
	return New(src, cat, diags).Tokens(), diags
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestScanner(t *testing.T) {
	tests := []struct {
		input    string
		expected []Kind
	}{
		{
			input:    "index=idx sourcetype=a",
			expected: []Kind{Name, Eq, Name, Name, Eq, Name, EOF},
		},
		{
			input:    "a | stats count by host",
			expected: []Kind{Name, Pipe, Command, Name, By, Name, EOF},
		},
		{
			input:    "f>=5 g<2.5",
			expected: []Kind{Name, CompOp, Number, Name, CompOp, Float, EOF},
		},
		{
			input:    "host=web* *err*",
			expected: []Kind{Name, Eq, Pattern, Pattern, EOF},
		},
		{
			input:    "[search x] | top 5 f",
			expected: []Kind{LBrack, Command, Name, RBrack, Pipe, Command, Number, Name, EOF},
		},
		{
			input:    "a==b a!=b a=b",
			expected: []Kind{Name, Deq, Name, Name, Neq, Name, Name, Eq, Name, EOF},
		},
		{
			input:    "date=12/25/2023 earliest=-1d@h .",
			expected: []Kind{Name, Eq, Date, Name, Eq, TimeSpecifier, Dot, EOF},
		},
	}
	for _, test := range tests {
		toks, diags := scan(t, test.input)
		got := kinds(toks)
		if len(got) != len(test.expected) {
			t.Errorf("input %q: kinds %v, want %v", test.input, got, test.expected)
			continue
		}
		for i := range got {
			if got[i] != test.expected[i] {
				t.Errorf("input %q token %d: %v, want %v", test.input, i, got[i], test.expected[i])
			}
		}
		if diags.Count() != 0 {
			t.Errorf("input %q: unexpected diagnostics %v", test.input, diags.List())
		}
	}
}

func TestCommandRetagging(t *testing.T) {
	toks, _ := scan(t, "STATS Count BY host")
	if toks[0].Kind != Command || toks[0].Cmd != "stats" {
		t.Errorf("token 0 = %+v, want lowercased stats command", toks[0])
	}
	if toks[0].Type != "CMD_STATS" {
		t.Errorf("type = %q, want CMD_STATS", toks[0].Type)
	}
	if toks[0].Value != "stats" {
		t.Errorf("command value = %q, want lowercased", toks[0].Value)
	}
	if toks[2].Kind != By || toks[2].Value != "by" {
		t.Errorf("token 2 = %+v, want BY_CLAUSE", toks[2])
	}
}

func TestNameRetagging(t *testing.T) {
	// Digit runs and float-shaped identifiers come out of the NAME rule
	// and must be retagged.
	toks, _ := scan(t, "123 1.5 abc123")
	if toks[0].Kind != Number {
		t.Errorf("123 lexed as %v", toks[0].Kind)
	}
	if toks[1].Kind != Float {
		t.Errorf("1.5 lexed as %v", toks[1].Kind)
	}
	if toks[2].Kind != Name {
		t.Errorf("abc123 lexed as %v", toks[2].Kind)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
		value string
	}{
		{`"hello world"`, String, "hello world"},
		{`'single'`, String, "single"},
		{`""`, String, ""},
		{`"("`, QLParen, "("},
		{`")"`, QRParen, ")"},
		{`"esc \" quote"`, String, `esc \" quote`},
	}
	for _, test := range tests {
		toks, _ := scan(t, test.input)
		if toks[0].Kind != test.kind {
			t.Errorf("input %s: kind %v, want %v", test.input, toks[0].Kind, test.kind)
			continue
		}
		if toks[0].Value != test.value {
			t.Errorf("input %s: value %q, want %q", test.input, toks[0].Value, test.value)
		}
	}
}

func TestIllegalCharacter(t *testing.T) {
	toks, diags := scan(t, "a & b")
	if diags.Count() != 1 {
		t.Fatalf("got %d diagnostics, want 1", diags.Count())
	}
	if len(toks) != 3 { // a, b, EOF
		t.Errorf("got %d tokens, want the illegal byte skipped", len(toks))
	}
}

func TestMacroTokensDropped(t *testing.T) {
	toks, diags := scan(t, "`mymacro` index=a")
	got := kinds(toks)
	want := []Kind{Name, Eq, Name, EOF}
	if len(got) != len(want) {
		t.Fatalf("kinds %v, want %v", got, want)
	}
	if diags.Count() != 0 {
		t.Errorf("unexpected diagnostics: %v", diags.List())
	}
}

func TestPositions(t *testing.T) {
	toks, _ := scan(t, "ab cd")
	if toks[0].Pos != 0 || toks[0].Len != 2 {
		t.Errorf("token 0 span = %d+%d", toks[0].Pos, toks[0].Len)
	}
	if toks[1].Pos != 3 || toks[1].Len != 2 {
		t.Errorf("token 1 span = %d+%d", toks[1].Pos, toks[1].Len)
	}
}
