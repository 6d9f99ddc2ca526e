// Package macro expands SPL macro invocations before lexing.
//
// Definitions live in macros.conf-style INI files: each stanza is `name` or
// `name(N)` where N is the number of arguments, with a `definition` body
// and, for parameterized macros, an `args` list. Expansion is textual
// substitution of `$arg$` placeholders, iterated until no calls remain or a
// safety cap is reached.
package macro

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

const maxIterations = 100

var (
	callRe = regexp.MustCompile("`([^`]+)`")
	// macro_name or macro_name(arg1,...) — argument text may not contain
	// commas or parentheses.
	nameArgsRe = regexp.MustCompile(`(?P<macro_name>[a-zA-Z][a-zA-Z0-9_\.]*)(\((?P<args>[^,\(\)]+(,[^,\(\)]+)*)\))?`)
)

// Stanza is one parsed macro definition.
type Stanza struct {
	Definition string
	Args       []string
}

// Result reports an expansion pass over a query.
type Result struct {
	Text                 string
	UniqueMacrosFound    int
	UniqueMacrosExpanded int
}

// File caching: repeated analyses against the same macro files should not
// reparse them.
var (
	cacheMu sync.Mutex
	cache   = make(map[string]map[string]Stanza)
)

func loadFile(path string) (map[string]Stanza, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if defs, ok := cache[path]; ok {
		return defs, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read macro file: %w", err)
	}
	// Splunk conf files continue lines with a trailing backslash; fold
	// them into indented continuation lines before INI parsing.
	folded := strings.ReplaceAll(string(raw), "\\\n", "\n\t")
	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		IgnoreInlineComment:        true,
	}, []byte(folded))
	if err != nil {
		return nil, fmt.Errorf("failed to parse macro file %s: %w", path, err)
	}
	defs := make(map[string]Stanza)
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		st := Stanza{Definition: stripQuotes(sec.Key("definition").String())}
		if argsLine := sec.Key("args").String(); argsLine != "" {
			for _, a := range strings.Split(argsLine, ",") {
				st.Args = append(st.Args, strings.TrimSpace(a))
			}
		}
		defs[sec.Name()] = st
	}
	cache[path] = defs
	return defs, nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// expandCall resolves a single backtick call body against one definition
// set. The second return is false when the call cannot be expanded there.
func expandCall(call string, defs map[string]Stanza) (string, bool) {
	m := nameArgsRe.FindStringSubmatch(call)
	if m == nil {
		return "", false
	}
	name := m[nameArgsRe.SubexpIndex("macro_name")]
	rawArgs := m[nameArgsRe.SubexpIndex("args")]
	if name == "" {
		return "", false
	}

	var callArgs []string
	if rawArgs != "" {
		callArgs = strings.Split(rawArgs, ",")
	}

	stanza := name
	if len(callArgs) > 0 {
		stanza = fmt.Sprintf("%s(%d)", name, len(callArgs))
	}
	def, ok := defs[stanza]
	if !ok {
		return "", false
	}
	if len(callArgs) == 0 {
		return def.Definition, true
	}

	declared := make(map[string]bool, len(def.Args))
	for _, a := range def.Args {
		declared[a] = true
	}
	// Named arguments bind first, remaining parameters bind positionally.
	mapping := make(map[string]string, len(def.Args))
	for _, ca := range callArgs {
		if eq := strings.Index(ca, "="); eq >= 0 {
			aname, avalue := ca[:eq], ca[eq+1:]
			if declared[aname] {
				mapping[aname] = avalue
			}
		}
	}
	for i, a := range def.Args {
		if _, ok := mapping[a]; !ok && i < len(callArgs) {
			mapping[a] = callArgs[i]
		}
	}
	body := def.Definition
	for a, v := range mapping {
		body = strings.ReplaceAll(body, "$"+a+"$", v)
	}
	return body, true
}

func uniqueCalls(text string) []string {
	seen := make(map[string]bool)
	var calls []string
	for _, m := range callRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			calls = append(calls, m[1])
		}
	}
	return calls
}

// Expand replaces every resolvable macro call in text using the definition
// files at paths, first definition wins, iterating to fixed point. Calls
// that cannot be resolved stay verbatim and are counted in
// UniqueMacrosFound only.
func Expand(text string, paths []string, log *logrus.Logger) (*Result, error) {
	var defSets []map[string]Stanza
	for _, p := range paths {
		defs, err := loadFile(p)
		if err != nil {
			return nil, err
		}
		defSets = append(defSets, defs)
	}

	res := &Result{Text: text}
	calls := uniqueCalls(text)
	for iter := 0; len(calls) > 0 && iter < maxIterations; iter++ {
		sub := make(map[string]string)
		for _, defs := range defSets {
			for _, call := range calls {
				if _, done := sub[call]; done {
					continue
				}
				if body, ok := expandCall(call, defs); ok {
					sub[call] = body
				}
			}
		}
		res.UniqueMacrosFound += len(calls)
		res.UniqueMacrosExpanded += len(sub)
		for call, body := range sub {
			res.Text = strings.ReplaceAll(res.Text, "`"+call+"`", body)
		}
		if len(sub) == 0 {
			// Nothing resolved this round; retrying cannot help.
			break
		}
		calls = uniqueCalls(res.Text)
	}
	if log != nil && res.UniqueMacrosFound > res.UniqueMacrosExpanded {
		log.Warnf("%d macros could not be expanded", res.UniqueMacrosFound-res.UniqueMacrosExpanded)
	}
	return res, nil
}
