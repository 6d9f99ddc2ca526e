package parser

import (
	"encoding/json"

	"github.com/gobwas/glob"
)

// Effect classifies how a command alters the downstream field universe.
type Effect int

const (
	EffectNone Effect = iota
	EffectExtend
	EffectReplace
	EffectRemove
	EffectRename
	EffectGenerate
)

var effectNames = [...]string{"none", "extend", "replace", "remove", "rename", "generate"}

func (e Effect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return "none"
}

// MarshalJSON renders the effect by name so result documents stay readable.
func (e Effect) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// Node is the uniform envelope carried by every grammar production: the
// fields a construct reads, the fields it emits, opaque captured content,
// the operators seen, and the field effect.
type Node struct {
	Type    string   `json:"type"`
	Input   []string `json:"input"`
	Output  []string `json:"output"`
	Content []string `json:"content,omitempty"`
	Op      []string `json:"op,omitempty"`

	// Effect is the single command's field effect; Effects is the
	// pipeline trail accumulated across pipe boundaries.
	Effect  Effect   `json:"-"`
	Effects []Effect `json:"fields-effect,omitempty"`
}

func newNode(typ string) *Node {
	return &Node{Type: typ}
}

// Subsearch records a bracketed search expression and its nesting level at
// the moment it reduced.
type Subsearch struct {
	Level int   `json:"level"`
	Data  *Node `json:"data"`
}

// appendUnique appends the values not already present, skipping empties.
// Field sets preserve first-insertion order throughout.
func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		if v == "" {
			continue
		}
		found := false
		for _, d := range dst {
			if d == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// filterFields returns the entries of list matched by the wildcard pattern.
func filterFields(list []string, pattern string) []string {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil
	}
	var out []string
	for _, f := range list {
		if g.Match(f) {
			out = append(out, f)
		}
	}
	return out
}

// composeCommands folds the next command into the running pipeline node,
// applying the command's field effect to the propagated output set.
func composeCommands(left, right *Node) *Node {
	out := &Node{
		Type:    "command",
		Input:   append(append([]string{}, left.Input...), right.Input...),
		Effects: append(append([]Effect{}, left.Effects...), right.Effect),
	}
	switch right.Effect {
	case EffectReplace:
		for _, f := range right.Output {
			if hasWildcard(f) {
				out.Output = append(out.Output, filterFields(left.Output, f)...)
			} else {
				out.Output = append(out.Output, f)
			}
		}
	case EffectRemove:
		var rem []string
		for _, f := range right.Output {
			if hasWildcard(f) {
				rem = append(rem, filterFields(left.Output, f)...)
			} else {
				rem = append(rem, f)
			}
		}
		for _, f := range left.Output {
			if !contains(rem, f) {
				out.Output = append(out.Output, f)
			}
		}
	case EffectRename:
		for _, f := range left.Output {
			if !contains(right.Input, f) {
				out.Output = append(out.Output, f)
			}
		}
		out.Output = append(out.Output, right.Output...)
	default:
		out.Output = append(append([]string{}, left.Output...), right.Output...)
	}
	out.Content = append(append([]string{}, left.Content...), right.Content...)
	return out
}

func hasWildcard(f string) bool {
	for i := 0; i < len(f); i++ {
		if f[i] == '*' {
			return true
		}
	}
	return false
}
