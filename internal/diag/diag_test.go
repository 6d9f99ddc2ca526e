package diag

import (
	"testing"
)

func TestDedupByMessageKey(t *testing.T) {
	c := NewCollector()
	c.Report(3, 7, "first", nil, "v")
	c.Report(3, 7, "second", nil, "v")
	c.Report(3, 8, "third", nil, "v")

	if c.Count() != 2 {
		t.Fatalf("count = %d, want 2", c.Count())
	}
	if len(c.List()) != 2 {
		t.Fatalf("list = %v, want 2 ids", c.List())
	}
	// Same key accumulates, preserving first-insertion order of ids.
	if got := len(c.Ref()[c.List()[0]]); got != 2 {
		t.Errorf("first key holds %d diagnostics, want 2", got)
	}
}

func TestDedupByTokenKey(t *testing.T) {
	c := NewCollector()
	tk := &Token{Pos: 5, Value: "foo", Type: "NAME"}
	c.Report(0, 8, "a", tk, "")
	c.Report(0, 9, "b", tk, "")

	if c.Count() != 1 {
		t.Fatalf("count = %d, want 1", c.Count())
	}
	if c.List()[0] != "5_foo" {
		t.Errorf("id = %q, want 5_foo", c.List()[0])
	}
}

func TestInsertionOrder(t *testing.T) {
	c := NewCollector()
	c.Report(10, 11, "later key first", nil, "x")
	c.Report(0, 1, "earlier position second", nil, "y")

	if c.List()[0] != "10_11_x" || c.List()[1] != "0_1_y" {
		t.Errorf("order = %v, want insertion order", c.List())
	}
}
