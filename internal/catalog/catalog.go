// Package catalog holds the declarative table of every recognized SPL
// command: its lexer token name, the argument names it accepts, the fields
// it creates and the command-specific enumerations used during analysis.
//
// The table ships as an embedded JSON resource and is loaded once per
// process; all access after Load is read-only.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed spl_commands.json
var commandsJSON []byte

// Descriptor describes a single cataloged command.
type Descriptor struct {
	Name      string   `json:"-"`
	TokenName string   `json:"token_name"`
	Args      []string `json:"args"`

	// CreatedFields is either a list of field names, a single field name,
	// or a map keyed by an argument value (e.g. anomalydetection's
	// "summary" vs "annotate_filter" sets). Use CreatedList / CreatedKeyed.
	CreatedFields interface{} `json:"created_fields,omitempty"`

	Modes       []string          `json:"modes,omitempty"`
	Types       map[string]string `json:"types,omitempty"`
	SearchModes []string          `json:"search_modes,omitempty"`
	Selectors   []string          `json:"selectors,omitempty"`

	argSet map[string]bool
}

// HasArg reports whether name is an accepted argument for this command.
func (d *Descriptor) HasArg(name string) bool {
	return d.argSet[name]
}

// CreatedList returns created_fields when it is declared as a plain list
// (or a single field name, returned as a one-element list).
func (d *Descriptor) CreatedList() []string {
	switch v := d.CreatedFields.(type) {
	case string:
		return []string{v}
	case []interface{}:
		return toStrings(v)
	}
	return nil
}

// CreatedKeyed returns the created_fields entry under key when
// created_fields is declared as a map.
func (d *Descriptor) CreatedKeyed(key string) []string {
	m, ok := d.CreatedFields.(map[string]interface{})
	if !ok {
		return nil
	}
	v, ok := m[key]
	if !ok {
		return nil
	}
	l, ok := v.([]interface{})
	if !ok {
		return nil
	}
	return toStrings(l)
}

func toStrings(v []interface{}) []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Catalog is the loaded command table.
type Catalog struct {
	byName map[string]*Descriptor
	names  []string
}

var (
	loadOnce sync.Once
	loaded   *Catalog
	loadErr  error
)

// Load parses the embedded command table. The result is memoized; the
// catalog is shared and read-only afterwards.
func Load() (*Catalog, error) {
	loadOnce.Do(func() {
		loaded, loadErr = parse(commandsJSON)
	})
	return loaded, loadErr
}

// MustLoad is Load for contexts where a broken command table is fatal.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	return c
}

func parse(raw []byte) (*Catalog, error) {
	var entries map[string]*Descriptor
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse command table: %w", err)
	}
	c := &Catalog{byName: make(map[string]*Descriptor, len(entries))}
	for name, d := range entries {
		d.Name = name
		d.argSet = make(map[string]bool, len(d.Args))
		for _, a := range d.Args {
			d.argSet[a] = true
		}
		c.byName[name] = d
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Lookup returns the descriptor for name (already lowercased) or nil.
func (c *Catalog) Lookup(name string) *Descriptor {
	return c.byName[name]
}

// IsCommand reports whether the lowercased lexeme names a command.
func (c *Catalog) IsCommand(lexeme string) bool {
	_, ok := c.byName[strings.ToLower(lexeme)]
	return ok
}

// TokenName returns the stable token identifier for a command name,
// or the empty string for unknown names.
func (c *Catalog) TokenName(name string) string {
	if d := c.byName[name]; d != nil {
		return d.TokenName
	}
	return ""
}

// Names returns every command name in sorted order.
func (c *Catalog) Names() []string {
	return c.names
}
