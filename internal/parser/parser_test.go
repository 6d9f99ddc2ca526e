package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/splq/splq/internal/catalog"
	"github.com/splq/splq/internal/diag"
)

func parseQuery(t *testing.T, query string) (*Node, *Parser, *diag.Collector) {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	diags := diag.NewCollector()
	p := New(cat, diags, nil)
	node := p.Parse(query)
	return node, p, diags
}

func TestFieldFlow(t *testing.T) {
	tests := []struct {
		query  string
		input  []string
		output []string
		errs   int
	}{
		{
			query:  "index=idx sourcetype=a | stats count by host",
			input:  []string{"index", "sourcetype", "host"},
			output: []string{"host", "count"},
		},
		{
			query:  "index=idx | stats avg(duration) as avg_d, max(duration) as max_d by host",
			input:  []string{"index", "host", "duration"},
			output: []string{"host", "avg_d", "max_d"},
		},
		{
			query:  "| makeresults | eval a=1, c=2 | rename a as b, c as d",
			output: []string{"_time", "b", "d"},
		},
		{
			query:  "| makeresults | eval a_x=1, a_y=2, b=3 | fields - a_*",
			output: []string{"_time", "b"},
		},
		{
			query:  "| makeresults | eval a=1, b=2 | fields a",
			output: []string{"a"},
		},
		{
			query:  "| makeresults | eval a=1, b=2 | table b",
			output: []string{"b"},
		},
		{
			query:  "error | where code>500",
			input:  []string{"code"},
			output: nil,
		},
		{
			query:  "| gauge f 0 100",
			output: []string{"x", "y1", "y2"},
		},
		{
			query:  "a | timechart count by host",
			input:  []string{"host"},
			output: []string{"_time", "count", "host"},
		},
		{
			query:  "a | chart count by status",
			input:  []string{"status"},
			output: []string{"count", "status"},
		},
		{
			query:  "| metadata type=hosts index=main",
			output: []string{"host", "firstTime", "lastTime", "recentTime", "totalCount", "type"},
		},
	}
	for _, test := range tests {
		node, _, diags := parseQuery(t, test.query)
		if test.input != nil && !reflect.DeepEqual(node.Input, test.input) {
			t.Errorf("query %q: input = %v, want %v", test.query, node.Input, test.input)
		}
		if test.output != nil && !reflect.DeepEqual(node.Output, test.output) {
			t.Errorf("query %q: output = %v, want %v", test.query, node.Output, test.output)
		}
		if diags.Count() != test.errs {
			t.Errorf("query %q: %d errors, want %d", test.query, diags.Count(), test.errs)
		}
	}
}

func TestEffectTrail(t *testing.T) {
	node, _, diags := parseQuery(t, "| inputlookup t where x>0 | fields - y")
	want := []Effect{EffectGenerate, EffectRemove}
	if !reflect.DeepEqual(node.Effects, want) {
		t.Fatalf("effects = %v, want %v", node.Effects, want)
	}
	for _, f := range node.Output {
		if f == "y" {
			t.Errorf("output %v still contains removed field y", node.Output)
		}
	}
	if diags.Count() != 0 {
		t.Errorf("unexpected errors: %d", diags.Count())
	}
}

func TestQuotedValueNotAField(t *testing.T) {
	node, _, _ := parseQuery(t, `f="v"`)
	if !reflect.DeepEqual(node.Input, []string{"f"}) {
		t.Errorf("input = %v, want [f]", node.Input)
	}
	for _, f := range node.Output {
		if f == "v" {
			t.Errorf("string value leaked into output: %v", node.Output)
		}
	}
}

func TestSubsearchLevels(t *testing.T) {
	_, p, _ := parseQuery(t, "[[ a ]]")
	subs := p.Subsearches()
	if len(subs) != 2 {
		t.Fatalf("got %d subsearches, want 2", len(subs))
	}
	if subs[0].Level != 2 || subs[1].Level != 1 {
		t.Errorf("levels = %d,%d, want 2,1", subs[0].Level, subs[1].Level)
	}
}

func TestSubsearchInAppend(t *testing.T) {
	node, p, diags := parseQuery(t, "index=a | append [search index=b | stats count]")
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	subs := p.Subsearches()
	if len(subs) != 1 || subs[0].Level != 1 {
		t.Fatalf("subsearches = %+v, want one at level 1", subs)
	}
	if !contains(node.Output, "count") {
		t.Errorf("append output not merged: %v", node.Output)
	}
}

func TestDiagnostics(t *testing.T) {
	tests := []struct {
		query   string
		errs    int
		message string
		value   string
	}{
		{
			query:   "a | stats count as n, count as n by x",
			errs:    1,
			message: "Duplicate field 'n'",
			value:   "n",
		},
		{
			query:   "a | sendemail format=html",
			errs:    1,
			message: "Missing 'to' argument",
			value:   "to",
		},
		{
			query:   "a | stats foo=bar count",
			errs:    1,
			message: "Unexpected argument 'foo'",
			value:   "foo",
		},
		{
			query:   "a | mcollect split=true",
			errs:    1,
			message: "Missing index argument",
			value:   "index",
		},
		{
			query:   "| metadata index=main",
			errs:    1,
			message: "Missing type argument",
			value:   "type",
		},
		{
			query:   "| metadata type=bogus",
			errs:    1,
			message: "Invalid type bogus",
			value:   "bogus",
		},
		{
			query:   "a | notacommand x | stats count",
			errs:    1,
			message: "Unknown command name",
		},
		{
			query:   "| from mydataset",
			errs:    1,
			message: "Malformated dataset information",
			value:   "mydataset",
		},
		{
			query:   "| datamodel mymodel myds bogusmode",
			errs:    1,
			message: "Unexpected datamode search mode",
			value:   "bogusmode",
		},
		{
			query:   "a | findtypes max=5 bogus",
			errs:    1,
			message: "Unexpected argument 'bogus'",
			value:   "bogus",
		},
		{
			query: "a | sendemail to=me@example.com format=html",
			errs:  0,
		},
		{
			query: "| datamodel mymodel myds flat",
			errs:  0,
		},
		{
			query: "| from datamodel:mymodel",
			errs:  0,
		},
	}
	for _, test := range tests {
		_, _, diags := parseQuery(t, test.query)
		if diags.Count() != test.errs {
			t.Errorf("query %q: %d errors, want %d (%v)", test.query, diags.Count(), test.errs, diags.List())
			continue
		}
		if test.errs == 0 {
			continue
		}
		found := false
		for _, id := range diags.List() {
			for _, d := range diags.Ref()[id] {
				if strings.Contains(d.Message, test.message) {
					found = true
				}
			}
		}
		if !found {
			t.Errorf("query %q: no diagnostic containing %q", test.query, test.message)
		}
		if test.value != "" {
			if !strings.HasSuffix(diags.List()[0], "_"+test.value) {
				t.Errorf("query %q: id %q does not carry value %q", test.query, diags.List()[0], test.value)
			}
		}
	}
}

func TestDiagnosticDedup(t *testing.T) {
	// The same offending argument reported at the same key collapses to
	// one id.
	_, _, diags := parseQuery(t, "a | sendemail format=html")
	if len(diags.List()) != diags.Count() {
		t.Errorf("list %d vs ref %d mismatch", len(diags.List()), diags.Count())
	}
}

func TestRexNamedGroups(t *testing.T) {
	node, _, diags := parseQuery(t, `a | rex field=_raw "(?<user>\w+)@(?<domain>\w+)"`)
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	for _, want := range []string{"user", "domain"} {
		if !contains(node.Output, want) {
			t.Errorf("output %v missing extracted group %s", node.Output, want)
		}
	}
}

func TestIplocation(t *testing.T) {
	node, _, diags := parseQuery(t, "a | iplocation prefix=ip_ clientip")
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	if !contains(node.Input, "clientip") {
		t.Errorf("input = %v, want clientip present", node.Input)
	}
	if !contains(node.Output, "ip_City") || !contains(node.Output, "ip_Country") {
		t.Errorf("output = %v, want prefixed geo fields", node.Output)
	}
	if contains(node.Output, "ip_Timezone") {
		t.Errorf("extended fields present without allfields: %v", node.Output)
	}
}

func TestPredictBoundArgs(t *testing.T) {
	node, _, diags := parseQuery(t, "a | predict sales upper95=high95 lower95=low95")
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	if !contains(node.Output, "high95") || !contains(node.Output, "low95") {
		t.Errorf("output = %v, want bound fields", node.Output)
	}
	if !contains(node.Input, "sales") {
		t.Errorf("input = %v, want sales", node.Input)
	}
}

func TestRangemapUserRanges(t *testing.T) {
	node, _, diags := parseQuery(t, "a | rangemap field=count low=0-10 high=11-100 default=none")
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	if !contains(node.Input, "count") {
		t.Errorf("input = %v, want count (field=)", node.Input)
	}
	for _, rng := range []string{"low", "high"} {
		if !contains(node.Input, rng) {
			t.Errorf("input = %v, want user range %s", node.Input, rng)
		}
	}
}

func TestReturnStripsDollar(t *testing.T) {
	node, _, _ := parseQuery(t, "a | return $srcip ip")
	if !contains(node.Input, "srcip") || !contains(node.Input, "ip") {
		t.Errorf("input = %v, want srcip and ip", node.Input)
	}
	if !contains(node.Output, "search") {
		t.Errorf("output = %v, want search", node.Output)
	}
}

func TestLookupOutputs(t *testing.T) {
	node, _, diags := parseQuery(t, "a | lookup geo clientip OUTPUT City, Region")
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	if !contains(node.Input, "clientip") {
		t.Errorf("input = %v, want clientip", node.Input)
	}
	for _, want := range []string{"City", "Region"} {
		if !contains(node.Output, want) {
			t.Errorf("output = %v, missing %s", node.Output, want)
		}
	}
	if !contains(node.Content, "geo") {
		t.Errorf("content = %v, want lookup file name", node.Content)
	}
}

func TestAnomalydetectionActions(t *testing.T) {
	node, _, _ := parseQuery(t, "a | anomalydetection action=summary")
	if !contains(node.Output, "num_anomalies") {
		t.Errorf("output = %v, want summary fields", node.Output)
	}
	if len(node.Effects) != 1 || node.Effects[0] != EffectReplace {
		t.Errorf("effects = %v, want [replace]", node.Effects)
	}

	node, _, _ = parseQuery(t, "a | anomalydetection")
	if !contains(node.Output, "probable_cause") {
		t.Errorf("output = %v, want annotate fields", node.Output)
	}
}

func TestForeachTemplate(t *testing.T) {
	node, _, diags := parseQuery(t, "a | foreach f1 f2 [eval t = t + 1]")
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	for _, want := range []string{"f1", "f2", "t"} {
		if !contains(node.Input, want) {
			t.Errorf("input = %v, missing %s", node.Input, want)
		}
	}
}

func TestStreamstatsWindowExpression(t *testing.T) {
	node, _, diags := parseQuery(t, `a | streamstats window=5 reset_after="(" count>10 ")" count by host`)
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	if !contains(node.Output, "count") || !contains(node.Input, "host") {
		t.Errorf("flow wrong: input=%v output=%v", node.Input, node.Output)
	}
}

func TestSearchFiltersIn(t *testing.T) {
	node, _, diags := parseQuery(t, `status IN (200, 301, 404) host=web* | stats count`)
	if diags.Count() != 0 {
		t.Fatalf("unexpected errors: %d", diags.Count())
	}
	if !contains(node.Input, "status") || !contains(node.Input, "host") {
		t.Errorf("input = %v", node.Input)
	}
}

func TestEmptyQueryAtEOF(t *testing.T) {
	_, _, diags := parseQuery(t, "a | ")
	if diags.Count() == 0 {
		t.Fatal("expected an end-of-query diagnostic")
	}
	d := diags.Ref()[diags.List()[0]][0]
	if d.StartPos != -20 || d.EndPos != -1 {
		t.Errorf("span = %d..%d, want -20..-1", d.StartPos, d.EndPos)
	}
}
