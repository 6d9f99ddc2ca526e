// Package diag collects analysis diagnostics with positional deduplication.
//
// Diagnostics are keyed either by the offending token (lexpos + value) or,
// when no token is attached, by the reported span and value. Repeated
// reports under the same key append to that key's list; the ordered id list
// only records the first insertion, so emission order matches the order in
// which the parser first hit each problem.
package diag

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Token is the token view attached to a diagnostic.
type Token struct {
	Pos   int    `json:"lexpos"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	StartPos int    `json:"start_pos"`
	EndPos   int    `json:"end_pos"`
	Message  string `json:"message"`
	Token    *Token `json:"token"`
}

// Collector is a per-analysis diagnostic store.
type Collector struct {
	list []string
	ref  map[string][]*Diagnostic
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{ref: make(map[string][]*Diagnostic)}
}

func tokenID(tk *Token) string {
	return fmt.Sprintf("%d_%s", tk.Pos, tk.Value)
}

func messageID(start, end int, value string) string {
	return fmt.Sprintf("%d_%d_%s", start, end, value)
}

// Report inserts a diagnostic. When tk is non-nil the dedup key is derived
// from the token, otherwise from the span and value.
func (c *Collector) Report(start, end int, msg string, tk *Token, value string) {
	d := &Diagnostic{StartPos: start, EndPos: end, Message: msg, Token: tk}
	var id string
	if tk != nil {
		id = tokenID(tk)
	} else {
		id = messageID(start, end, value)
	}
	if _, ok := c.ref[id]; !ok {
		c.list = append(c.list, id)
	}
	c.ref[id] = append(c.ref[id], d)
}

// Count returns the number of distinct diagnostic keys.
func (c *Collector) Count() int {
	return len(c.ref)
}

// List returns the diagnostic ids in first-insertion order.
func (c *Collector) List() []string {
	return c.list
}

// Ref returns the id-to-diagnostics mapping.
func (c *Collector) Ref() map[string][]*Diagnostic {
	return c.ref
}

// Print emits the last diagnostic registered under each key, in insertion
// order. Negative positions are offsets from the end of src, clamped to 0.
func (c *Collector) Print(src string, log *logrus.Logger) {
	for _, id := range c.list {
		ds := c.ref[id]
		d := ds[len(ds)-1]
		st, ed := d.StartPos, d.EndPos
		if st < 0 {
			st = max(0, len(src)+st)
			ed = max(0, len(src)+ed)
		}
		if d.Token == nil {
			log.Errorf("[%d->%d] %s\n\t%s", st, ed, d.Message, slice(src, st, ed))
		} else {
			log.Errorf("[%d->%d] %s : for value '%s' of type %s\n\t%s",
				st, ed, d.Message, d.Token.Value, d.Token.Type, slice(src, st, min(ed+10, len(src))))
		}
	}
}

func slice(s string, st, ed int) string {
	if st > len(s) {
		st = len(s)
	}
	if ed > len(s) {
		ed = len(s)
	}
	if st > ed {
		return ""
	}
	return s[st:ed]
}
