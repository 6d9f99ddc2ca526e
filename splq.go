// Package splq is a static analyzer for SPL (Search Processing Language)
// queries. Given a query string it expands macros, parses the pipeline and
// reports the fields the query reads and emits, the field effect of every
// command, the subsearches it contains and any diagnostics.
//
// The analyzer never executes SPL and never talks to a data source; its
// only inputs are the query text, the embedded command catalog and any
// macro definition files the caller points it at.
package splq

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/splq/splq/internal/catalog"
	"github.com/splq/splq/internal/diag"
	"github.com/splq/splq/internal/macro"
	"github.com/splq/splq/internal/parser"
)

// Options configures one Analyze call.
type Options struct {
	// Verbose enables debug logging of macro expansion counts and of the
	// parsed search expressions.
	Verbose bool

	// PrintErrors emits collected diagnostics through the logger after
	// parsing.
	PrintErrors bool

	// MacroFiles lists macro definition files consulted in order; the
	// first file defining a stanza wins.
	MacroFiles []string

	// Logger receives analyzer output. A default logger is created when
	// nil.
	Logger *logrus.Logger
}

// Result is the analysis document for one query.
type Result struct {
	Data        ResultData `json:"data"`
	Errors      Errors     `json:"errors"`
	ErrorsCount int        `json:"errors_count"`
}

// ResultData carries the main search expression and the recorded
// subsearches in inside-out completion order.
type ResultData struct {
	Main        *parser.Node       `json:"main"`
	Subsearches []parser.Subsearch `json:"subsearches"`
}

// Errors exposes diagnostics: ids in first-insertion order and the id to
// diagnostics mapping.
type Errors struct {
	List []string                      `json:"list"`
	Ref  map[string][]*diag.Diagnostic `json:"ref"`
}

// Analyze runs the full pipeline on one query: macro expansion, lexing,
// parsing and semantic analysis. It returns an error only on unrecoverable
// failures (unreadable macro files, catalog corruption, internal panic);
// user-level problems surface as diagnostics in the result.
func Analyze(query string, opts *Options) (res *Result, err error) {
	if opts == nil {
		opts = &Options{PrintErrors: true}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	switch {
	case opts.Verbose:
		log.SetLevel(logrus.DebugLevel)
	case opts.PrintErrors:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.FatalLevel)
	}

	cat, err := catalog.Load()
	if err != nil {
		return nil, err
	}

	if len(opts.MacroFiles) > 0 {
		mres, merr := macro.Expand(query, opts.MacroFiles, log)
		if merr != nil {
			return nil, merr
		}
		if mres.UniqueMacrosFound > 0 {
			log.Debugf("%d unique macros found and %d were expanded",
				mres.UniqueMacrosFound, mres.UniqueMacrosExpanded)
		}
		query = mres.Text
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("analyzer failure: %v", r)
		}
	}()

	diags := diag.NewCollector()
	p := parser.New(cat, diags, log)
	main := p.Parse(query)

	if opts.PrintErrors {
		diags.Print(query, log)
	}
	return &Result{
		Data: ResultData{
			Main:        main,
			Subsearches: p.Subsearches(),
		},
		Errors: Errors{
			List: diags.List(),
			Ref:  diags.Ref(),
		},
		ErrorsCount: diags.Count(),
	}, nil
}
