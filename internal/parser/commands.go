package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/splq/splq/internal/lexer"
)

// parseCommandBody dispatches to the production for one command. cmdTok is
// the command token itself (already consumed).
func (p *Parser) parseCommandBody(cmdTok lexer.Token) (*Node, error) {
	switch cmdTok.Cmd {
	case "search":
		return p.cmdSearch()
	case "stats":
		return p.cmdStats(cmdTok)
	case "eval":
		return p.cmdEval()
	case "where":
		return p.cmdWhere()
	case "fields":
		return p.cmdFields()
	case "rename":
		return p.cmdRename()
	case "sort":
		return p.cmdSort()
	case "dedup":
		return p.cmdDedup(cmdTok)
	case "table", "filldown", "highlight", "iconify":
		return p.cmdFieldsOnly(cmdTok)
	case "accum":
		return p.cmdAccum()
	case "anomalies":
		return p.cmdAnomalies(cmdTok)
	case "append", "appendcols":
		return p.cmdAppend(cmdTok)
	case "appendpipe":
		return p.cmdAppendpipe(cmdTok)
	case "autoregress":
		return p.cmdAutoregress(cmdTok)
	case "bin", "bucket":
		return p.cmdBin(cmdTok)
	case "top", "rare":
		return p.cmdTopRare(cmdTok)
	case "chart":
		return p.cmdChart(cmdTok)
	case "cofilter":
		return p.cmdCofilter()
	case "contingency":
		return p.cmdContingency(cmdTok)
	case "convert":
		return p.cmdConvert(cmdTok)
	case "datamodel":
		return p.cmdDatamodel(cmdTok)
	case "delta":
		return p.cmdDelta(cmdTok)
	case "erex":
		return p.cmdErex(cmdTok)
	case "eventstats":
		return p.cmdEventstats(cmdTok)
	case "extract":
		return p.cmdExtract(cmdTok)
	case "fieldformat":
		return p.cmdFieldformat()
	case "findtypes":
		return p.cmdFindtypes(cmdTok)
	case "foreach":
		return p.cmdForeach(cmdTok)
	case "format":
		return p.cmdFormat(cmdTok)
	case "from":
		return p.cmdFrom(cmdTok)
	case "gauge":
		return p.cmdGauge()
	case "geom":
		return p.cmdGeom(cmdTok)
	case "geostats":
		return p.cmdGeostats(cmdTok)
	case "head":
		return p.cmdHead(cmdTok)
	case "inputlookup", "inputcsv":
		return p.cmdInputlookup(cmdTok)
	case "iplocation":
		return p.cmdIplocation(cmdTok)
	case "join":
		return p.cmdJoin(cmdTok)
	case "loadjob":
		return p.cmdLoadjob(cmdTok)
	case "lookup":
		return p.cmdLookup(cmdTok)
	case "map":
		return p.cmdMap(cmdTok)
	case "metasearch":
		return p.cmdMetasearch(cmdTok)
	case "mstats":
		return p.cmdMstats(cmdTok)
	case "multikv":
		return p.cmdMultikv(cmdTok)
	case "multisearch":
		return p.cmdMultisearch()
	case "outputlookup", "outputcsv":
		return p.cmdOutputlookup(cmdTok)
	case "pivot":
		return p.cmdPivot(cmdTok)
	case "predict":
		return p.cmdPredict(cmdTok)
	case "rangemap":
		return p.cmdRangemap(cmdTok)
	case "redistribute":
		return p.cmdRedistribute(cmdTok)
	case "regex":
		return p.cmdRegex()
	case "replace":
		return p.cmdReplace()
	case "rest":
		return p.cmdRest(cmdTok)
	case "return":
		return p.cmdReturn()
	case "rex":
		return p.cmdRex(cmdTok)
	case "savedsearch":
		return p.cmdSavedsearch(cmdTok)
	case "searchtxn":
		return p.cmdSearchtxn(cmdTok)
	case "streamstats":
		return p.cmdStreamstats(cmdTok)
	case "timechart":
		return p.cmdTimechart(cmdTok)
	}
	return p.cmdGeneric(cmdTok)
}

// --- generic shapes ---

// collectArgsAndFields consumes any interleaving of `name=value` terms and
// field names, the common argument layout of most commands.
func (p *Parser) collectArgsAndFields(args *argMap, fields *[]string) error {
	for {
		switch {
		case p.atArgsTerm():
			term, err := p.parseArgsTerm()
			if err != nil {
				return err
			}
			args.Extend(term)
		case isFieldish(p.cur()) && !p.atFieldListStop():
			f, err := p.parseFieldName()
			if err != nil {
				return err
			}
			*fields = append(*fields, f)
		case p.at(lexer.Comma) && isFieldish(p.peek(1)) && p.peek(2).Kind != lexer.Eq:
			p.advance()
		default:
			return nil
		}
	}
}

// cmdGeneric handles every command whose surface is a mix of arguments and
// fields with catalog-driven created fields.
func (p *Parser) cmdGeneric(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	var fields []string
	if err := p.collectArgsAndFields(args, &fields); err != nil {
		return nil, err
	}
	n.Input = append(n.Input, fields...)
	p.checkArgs(cmdTok, args)
	p.applyCreated(cmdTok, n, args)
	return n, nil
}

// applyCreated applies the per-command created-field and effect rules that
// the catalog alone cannot express.
func (p *Parser) applyCreated(cmdTok lexer.Token, n *Node, args *argMap) {
	d := p.cat.Lookup(cmdTok.Cmd)
	if d == nil {
		return
	}
	switch cmdTok.Cmd {
	case "anomalydetection":
		n.Effect = EffectExtend
		if action := args.GetString("action"); args.Has("action") {
			switch action {
			case "filter", "annotate":
				n.Output = d.CreatedKeyed("annotate_filter")
			case "summary":
				n.Output = d.CreatedKeyed("summary")
				n.Effect = EffectReplace
			}
		} else {
			n.Output = d.CreatedKeyed("annotate_filter")
		}
	case "af", "analysefields", "analyzefields":
		n.Input = nil
		for _, k := range args.Keys() {
			n.Input = append(n.Input, args.GetString(k))
		}
		n.Output = d.CreatedList()
		n.Effect = EffectReplace
	case "associate":
		n.Output = d.CreatedList()
		n.Effect = EffectReplace
	case "bucketdir":
		if args.Has("pathfield") {
			n.Input = append(n.Input, args.GetString("pathfield"))
		}
	case "table":
		n.Output = append([]string{}, n.Input...)
		n.Effect = EffectReplace
	case "cluster":
		if args.Has("field") {
			n.Input = append(n.Input, args.GetString("field"))
		}
	case "dbinspect":
		n.Effect = EffectReplace
		n.Output = d.CreatedList()
		if args.Has("index") {
			n.Input = append(n.Input, "index")
			n.Content = args.Strings("index")
		}
	case "diff":
		if args.Has("attribute") {
			n.Input = append(n.Input, args.GetString("attribute"))
		}
	case "eventcount":
		if args.Has("index") {
			n.Content = args.Strings("index")
		}
	case "makeresults":
		n.Effect = EffectGenerate
		n.Output = d.CreatedKeyed("default")
		if v := args.GetString("annotate"); v == "t" || v == "true" || v == "TRUE" || v == "True" {
			n.Output = d.CreatedKeyed("annotate")
		}
	case "fieldsummary":
		n.Effect = EffectReplace
		n.Output = d.CreatedList()
	case "gentimes":
		n.Effect = EffectGenerate
		n.Output = d.CreatedList()
	case "highlight":
		n.Content = n.Input
		n.Input = nil
	case "history":
		n.Effect = EffectGenerate
		if v := args.GetString("events"); v == "true" || v == "t" || v == "True" {
			n.Output = append(n.Output, d.CreatedKeyed("true")...)
		} else {
			n.Output = append(n.Output, d.CreatedKeyed("false")...)
		}
	case "kmeans":
		if args.Has("cfield") {
			n.Output = append(n.Output, args.GetString("cfield"))
		} else {
			n.Output = append(n.Output, d.CreatedList()...)
			n.Effect = EffectExtend
		}
	case "kvform":
		if args.Has("field") {
			n.Input = append(n.Input, args.GetString("field"))
		}
	case "mcollect", "meventcollect":
		if !args.Has("index") {
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Missing index argument in command %s", cmdTok.Cmd), nil, "index")
		}
	case "metadata":
		n.Effect = EffectGenerate
		if !args.Has("type") {
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Missing type argument in command %s", cmdTok.Cmd), nil, "type")
		} else if f, ok := d.Types[args.GetString("type")]; ok {
			n.Output = append(n.Output, f)
		} else {
			arg := args.GetString("type")
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Invalid type %s in command %s, expected %v", arg, cmdTok.Cmd, typeKeys(d.Types)),
				nil, arg)
		}
		if args.Has("index") {
			n.Content = append(n.Content, args.Strings("index")...)
		}
		n.Output = append(n.Output, d.CreatedList()...)
	case "mpreview":
		n.Effect = EffectGenerate
		if args.Has("index") {
			n.Content = append(n.Content, args.Strings("index")...)
		}
		if args.Has("filter") {
			n.Content = append(n.Content, args.GetString("filter"))
		}
	case "outputtext", "relevancy", "reltime":
		n.Effect = EffectExtend
		n.Output = append(n.Output, d.CreatedList()...)
	case "script", "run":
		n.Content = n.Input
		n.Input = nil
	case "sendemail":
		if !args.Has("to") {
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Missing 'to' argument in command %s", cmdTok.Cmd), nil, "to")
		}
	}
}

func typeKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// --- dedicated commands ---

func (p *Parser) cmdSearch() (*Node, error) {
	flt := p.parseFilters()
	n := newNode("command")
	n.Input = flt.Input
	n.Content = flt.Content
	n.Op = flt.Op
	return n, nil
}

func (p *Parser) cmdStats(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectReplace
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	aggs, err := p.parseAggTermsList()
	if err != nil {
		return nil, err
	}
	var by []string
	if p.at(lexer.By) || p.at(lexer.GroupBy) {
		p.advance()
		fl, err := p.parseFieldsList()
		if err != nil {
			return nil, err
		}
		by = fl.Input
	}
	for _, f := range by {
		if !contains(n.Input, f) {
			n.Input = append(n.Input, f)
			n.Output = append(n.Output, f)
		}
	}
	n.Input = appendUnique(n.Input, aggs.Input...)
	for _, f := range aggs.Output {
		if f == "" {
			continue
		}
		if !contains(n.Output, f) {
			n.Output = append(n.Output, f)
		} else {
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Duplicate field '%s' in stats", f), nil, f)
		}
	}
	p.checkArgs(cmdTok, args)
	p.log.Debugf("parsed stats: input=%v output=%v", n.Input, n.Output)
	return n, nil
}

func (p *Parser) cmdEval() (*Node, error) {
	exprs, err := p.parseEvalExprs()
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Effect = EffectExtend
	n.Input = exprs.Input
	n.Output = exprs.Output
	n.Content = exprs.Content
	return n, nil
}

func (p *Parser) cmdWhere() (*Node, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Input = expr.Input
	n.Content = expr.Content
	return n, nil
}

func (p *Parser) cmdFields() (*Node, error) {
	n := newNode("command")
	n.Effect = EffectReplace
	switch p.cur().Kind {
	case lexer.Plus:
		p.advance()
	case lexer.Minus:
		p.advance()
		n.Effect = EffectRemove
	}
	fl, err := p.parseFieldsList()
	if err != nil {
		return nil, err
	}
	n.Input = fl.Input
	n.Output = append([]string{}, fl.Input...)
	return n, nil
}

func (p *Parser) cmdRename() (*Node, error) {
	rl, err := p.parseRFieldsList()
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Effect = EffectRename
	n.Input = rl.Input
	n.Output = rl.Output
	return n, nil
}

// parseSortClause consumes comma-separated sort terms with optional +/-
// prefixes.
func (p *Parser) parseSortClause() (*Node, error) {
	n := newNode("sort_clause")
	for first := true; ; first = false {
		if !first {
			if !p.at(lexer.Comma) {
				return n, nil
			}
			p.advance()
		}
		switch p.cur().Kind {
		case lexer.Plus, lexer.Minus:
			p.advance()
		}
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, f)
	}
}

func (p *Parser) cmdSort() (*Node, error) {
	n := newNode("command")
	if p.at(lexer.Number) {
		p.advance()
	}
	sc, err := p.parseSortClause()
	if err != nil {
		return nil, err
	}
	n.Input = sc.Input
	if p.at(lexer.Name) {
		p.advance() // trailing order keyword, e.g. desc
	}
	return n, nil
}

func (p *Parser) cmdDedup(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	if p.at(lexer.Number) {
		p.advance()
	}
	fl, err := p.parseFieldsList()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, fl.Input...)
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.SortBy) {
		p.advance()
		sc, err := p.parseSortClause()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, sc.Input...)
	}
	if args.Len() > 0 {
		p.checkArgs(cmdTok, args)
	}
	return n, nil
}

// cmdFieldsOnly covers the commands taking a bare field list; table and
// highlight get their effects from applyCreated.
func (p *Parser) cmdFieldsOnly(cmdTok lexer.Token) (*Node, error) {
	fl, err := p.parseFieldsList()
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Input = fl.Input
	p.applyCreated(cmdTok, n, newArgMap())
	return n, nil
}

func (p *Parser) cmdAccum() (*Node, error) {
	f, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Input = append(n.Input, f)
	if p.at(lexer.As) {
		p.advance()
		out, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Output = append(n.Output, out)
		n.Effect = EffectExtend
	}
	return n, nil
}

func (p *Parser) cmdAnomalies(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.By) {
		p.advance()
		if _, err := p.parseFieldsList(); err != nil {
			return nil, err
		}
	}
	p.checkArgs(cmdTok, args)
	if args.Has("field") {
		n.Input = append(n.Input, args.GetString("field"))
	}
	if d := p.cat.Lookup(cmdTok.Cmd); d != nil {
		n.Output = d.CreatedList()
	}
	return n, nil
}

func (p *Parser) cmdAppend(cmdTok lexer.Token) (*Node, error) {
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	sub, err := p.parseSubsearch()
	if err != nil {
		return nil, err
	}
	p.checkArgs(cmdTok, args)
	n := newNode("command")
	n.Effect = EffectExtend
	n.Input = sub.Input
	n.Output = sub.Output
	return n, nil
}

func (p *Parser) cmdAppendpipe(cmdTok lexer.Token) (*Node, error) {
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	p.checkArgs(cmdTok, args)
	if !p.at(lexer.LBrack) {
		// Bare appendpipe: nothing flows.
		return newNode("command"), nil
	}
	sub, err := p.parseSubpipeline()
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Effect = EffectExtend
	n.Input = sub.Input
	n.Output = sub.Output
	return n, nil
}

func (p *Parser) cmdAutoregress(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	if p.atRFieldTerm() {
		t, err := p.parseRFieldTerm()
		if err != nil {
			return nil, err
		}
		n.Input = t.Input
		n.Output = t.Output
		n.Effect = EffectExtend
	} else {
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, f)
	}
	if p.atArgsTerm() {
		args, err := p.parseArgsTerm()
		if err != nil {
			return nil, err
		}
		p.checkArgs(cmdTok, args)
	}
	return n, nil
}

func (p *Parser) cmdBin(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args := newArgMap()
	for {
		switch {
		case p.atArgsTerm():
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
		case p.atRFieldTerm():
			t, err := p.parseRFieldTerm()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, t.Input...)
			n.Output = append(n.Output, t.Output...)
		case p.at(lexer.As) && isFieldish(p.peek(1)):
			p.advance()
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Output = append(n.Output, f)
		case isFieldish(p.cur()):
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			if len(n.Input) == 0 {
				n.Input = append(n.Input, f)
			} else {
				n.Output = append(n.Output, f)
			}
		default:
			p.checkArgs(cmdTok, args)
			return n, nil
		}
	}
}

func (p *Parser) cmdTopRare(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	if p.at(lexer.Number) {
		p.advance()
	}
	args := newArgMap()
	var fields []string
	if err := p.collectArgsAndFields(args, &fields); err != nil {
		return nil, err
	}
	n.Input = append(n.Input, fields...)
	if p.at(lexer.By) {
		p.advance()
		fl, err := p.parseFieldsList()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, fl.Input...)
		tail, err := p.parseArgsList()
		if err != nil {
			return nil, err
		}
		args.Extend(tail)
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

// parseChartWhere consumes `agg_term (COMP_OP n | in/notin top/bottom n)`.
func (p *Parser) parseChartWhere() ([]string, error) {
	agg, err := p.parseAggTerm()
	if err != nil {
		return nil, err
	}
	switch p.cur().Kind {
	case lexer.CompOp:
		p.advance()
		if !p.at(lexer.Number) && !p.at(lexer.Float) {
			return nil, &syntaxError{tok: p.cur()}
		}
		p.advance()
	case lexer.In, lexer.NotIn:
		p.advance()
		if p.at(lexer.Bottom) || p.atCmd("top") {
			p.advance()
		} else {
			return nil, &syntaxError{tok: p.cur()}
		}
		if _, err := p.expect(lexer.Number); err != nil {
			return nil, err
		}
	default:
		return nil, &syntaxError{tok: p.cur()}
	}
	return agg.Input, nil
}

func (p *Parser) cmdChart(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectReplace
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	aggs, err := p.parseAggOrEvalList()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, aggs.Input...)
	n.Output = append(n.Output, aggs.Output...)
	n.Content = append(n.Content, aggs.Content...)

	var clauseFields []string
	sawBy := false
	if p.at(lexer.Over) {
		p.advance()
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		clauseFields = append(clauseFields, f)
		tail, err := p.parseArgsList()
		if err != nil {
			return nil, err
		}
		args.Extend(tail)
	}
	if p.at(lexer.By) {
		sawBy = true
		p.advance()
		for nfields := 0; nfields < 2; nfields++ {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			clauseFields = append(clauseFields, f)
			tail, err := p.parseArgsList()
			if err != nil {
				return nil, err
			}
			args.Extend(tail)
			if !isFieldish(p.cur()) || p.atArgsTerm() {
				break
			}
		}
		if p.at(lexer.Name) && !p.atArgsTerm() {
			// chart where clause shapes start with an aggregation term
			m := p.mark()
			if _, err := p.parseChartWhere(); err != nil {
				p.reset(m)
			}
		}
	}
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)

	n.Input = append(n.Input, clauseFields...)
	if sawBy {
		n.Output = append(n.Output, clauseFields...)
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdCofilter() (*Node, error) {
	f1, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	f2, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Effect = EffectReplace
	n.Input = []string{f1, f2}
	return n, nil
}

func (p *Parser) cmdContingency(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectReplace
	args := newArgMap()
	var fields []string
	if err := p.collectArgsAndFields(args, &fields); err != nil {
		return nil, err
	}
	n.Input = fields
	if len(n.Input) > 0 {
		// The first field appears in the results along with the values of
		// the second.
		n.Output = append(n.Output, n.Input[0])
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdConvert(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	for p.atArgsTerm() {
		term, err := p.parseArgsTerm()
		if err != nil {
			return nil, err
		}
		args.Extend(term)
	}
	for first := true; ; first = false {
		if !first {
			if p.at(lexer.Comma) {
				p.advance()
			} else if !(p.at(lexer.Name) && p.peek(1).Kind == lexer.LParen) {
				break
			}
		}
		fun, err := p.expect(lexer.Name)
		if err != nil {
			return nil, err
		}
		n.Op = append(n.Op, fun.Value)
		if _, err := p.expect(lexer.LParen); err != nil {
			return nil, err
		}
		if p.at(lexer.Times) {
			p.advance()
			n.Input = append(n.Input, "*")
		} else {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, f)
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		if p.at(lexer.As) {
			p.advance()
			out, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Output = append(n.Output, out)
		}
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdDatamodel(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	args := newArgMap()
	var names []string
	if err := p.collectArgsAndFields(args, &names); err != nil {
		return nil, err
	}
	n.Output = append(n.Output, names...)
	if len(names) == 3 {
		d := p.cat.Lookup(cmdTok.Cmd)
		mode := names[2]
		if d != nil && !contains(d.SearchModes, mode) {
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Unexpected datamode search mode '%s', expected %v", mode, d.SearchModes),
				nil, mode)
		}
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdDelta(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args := newArgMap()
	for {
		switch {
		case p.atArgsTerm():
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
		case p.at(lexer.As) && isFieldish(p.peek(1)):
			p.advance()
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Output = append(n.Output, f)
		case isFieldish(p.cur()):
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			if len(n.Input) == 0 {
				n.Input = append(n.Input, f)
			} else {
				n.Output = append(n.Output, f)
			}
		default:
			if len(n.Output) == 0 && len(n.Input) > 0 {
				n.Output = append(n.Output, fmt.Sprintf("%s(%s)", cmdTok.Cmd, n.Input[0]))
			}
			p.checkArgs(cmdTok, args)
			return n, nil
		}
	}
}

func (p *Parser) cmdErex(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args := newArgMap()
	var fields []string
	if err := p.collectArgsAndFields(args, &fields); err != nil {
		return nil, err
	}
	n.Output = append(n.Output, fields...)
	if args.Has("fromfield") {
		n.Input = append(n.Input, args.GetString("fromfield"))
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdEventstats(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	aggs, err := p.parseAggTermsList()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, aggs.Input...)
	n.Output = append(n.Output, aggs.Output...)
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	if p.at(lexer.By) {
		p.advance()
		fl, err := p.parseFieldsList()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, fl.Input...)
	}
	tail, err = p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdExtract(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Input = append(n.Input, "_raw")
	args := newArgMap()
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
			continue
		}
		if p.atValue() {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, v)
			continue
		}
		break
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdFieldformat() (*Node, error) {
	f, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.Eq); err != nil {
		return nil, err
	}
	val, err := p.parseExprValue(0)
	if err != nil {
		return nil, err
	}
	n := newNode("command")
	n.Input = append(n.Input, f)
	n.Content = append(n.Content, val)
	return n, nil
}

func (p *Parser) cmdFindtypes(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	d := p.cat.Lookup(cmdTok.Cmd)
	for isFieldish(p.cur()) && !p.atArgsTerm() {
		mode, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		if d != nil && !contains(d.Modes, mode) {
			p.diags.Report(cmdTok.Pos, p.prevEnd(),
				fmt.Sprintf("Unexpected argument '%s' in %s, expected %v", mode, cmdTok.Cmd, d.Modes),
				nil, mode)
		}
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdForeach(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
			continue
		}
		if p.at(lexer.Times) {
			p.advance()
			n.Input = append(n.Input, "*")
			continue
		}
		if isFieldish(p.cur()) {
			fl, err := p.parseFieldsList()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, fl.Input...)
			continue
		}
		break
	}
	// Template subsearch: a single eval assignment in brackets.
	if _, err := p.expect(lexer.LBrack); err != nil {
		return nil, err
	}
	if !p.atCmd("eval") {
		return nil, &syntaxError{tok: p.cur()}
	}
	p.advance()
	assign, err := p.parseEvalAssign()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBrack); err != nil {
		return nil, err
	}
	n.Input = append(n.Input, assign.Input...)
	n.Content = append(n.Content, assign.Content...)
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdFormat(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	for p.at(lexer.String) {
		n.Content = append(n.Content, p.advance().Value)
	}
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdFrom(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	first, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	firstEnd := p.prevEnd()
	switch {
	case p.at(lexer.Colon):
		p.advance()
		second, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, first+":"+second)
	case isFieldish(p.cur()) && !p.atArgsTerm():
		second, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, first+":"+second)
	default:
		if !strings.Contains(first, ":") {
			p.diags.Report(cmdTok.Pos, firstEnd,
				fmt.Sprintf("Malformated dataset information '%s' in %s, expected <dataset_type>:<dataset_name>", first, cmdTok.Cmd),
				nil, first)
		} else {
			n.Input = append(n.Input, first)
		}
	}
	return n, nil
}

func (p *Parser) cmdGauge() (*Node, error) {
	n := newNode("command")
	n.Effect = EffectReplace
	var values []string
	for {
		if p.at(lexer.Number) {
			values = append(values, p.advance().Value)
			continue
		}
		if p.at(lexer.Minus) && p.peek(1).Kind == lexer.Number {
			p.advance()
			values = append(values, "-"+p.advance().Value)
			continue
		}
		if isFieldish(p.cur()) && !p.atArgsTerm() {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, f)
			values = append(values, f)
			continue
		}
		break
	}
	if len(values) == 0 {
		return nil, &syntaxError{tok: p.cur()}
	}
	n.Output = append(n.Output, "x")
	if len(values) > 1 {
		for i := 1; i < len(values); i++ {
			n.Output = append(n.Output, fmt.Sprintf("y%d", i))
		}
	} else {
		// Default range is 0 to 100: two boundary fields.
		n.Output = append(n.Output, "y1", "y2")
	}
	return n, nil
}

func (p *Parser) cmdGeom(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args := newArgMap()
	var fields []string
	if err := p.collectArgsAndFields(args, &fields); err != nil {
		return nil, err
	}
	n.Content = append(n.Content, fields...)
	if d := p.cat.Lookup(cmdTok.Cmd); d != nil {
		n.Output = append(n.Output, d.CreatedList()...)
	}
	p.checkArgs(cmdTok, args)
	if args.Has("featureIdField") {
		n.Input = append(n.Input, args.GetString("featureIdField"))
	} else {
		n.Input = append(n.Input, "featureId")
	}
	return n, nil
}

func (p *Parser) cmdGeostats(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectReplace
	if d := p.cat.Lookup(cmdTok.Cmd); d != nil {
		n.Output = append(n.Output, d.CreatedList()...)
	}
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	aggs, err := p.parseAggTermsList()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, aggs.Input...)
	n.Output = append(n.Output, aggs.Output...)
	n.Content = append(n.Content, aggs.Content...)
	if p.at(lexer.By) {
		p.advance()
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, f)
	}
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdHead(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
			continue
		}
		if p.atCommandEnd() {
			break
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		n.Content = append(n.Content, expr.Content...)
		n.Input = append(n.Input, expr.Input...)
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdInputlookup(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	name, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n.Content = append(n.Content, name)
	if p.atCmd("where") {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		n.Content = append(n.Content, expr.Content...)
		n.Input = append(n.Input, expr.Input...)
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdIplocation(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args := newArgMap()
	var fields []string
	if err := p.collectArgsAndFields(args, &fields); err != nil {
		return nil, err
	}
	n.Input = append(n.Input, fields...)
	d := p.cat.Lookup(cmdTok.Cmd)
	if d != nil {
		flist := append([]string{}, d.CreatedKeyed("default")...)
		if v := args.GetString("allfields"); v == "true" || v == "t" || v == "True" {
			flist = append(flist, d.CreatedKeyed("extended")...)
		}
		prefix := args.GetString("prefix")
		for _, f := range flist {
			n.Output = append(n.Output, prefix+f)
		}
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdJoin(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	for {
		switch {
		case p.atArgsTerm():
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
		case p.at(lexer.LBrack):
			sub, err := p.parseSubsearch()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, sub.Input...)
			n.Output = append(n.Output, sub.Output...)
			n.Content = append(n.Content, sub.Content...)
		case isFieldish(p.cur()):
			fl, err := p.parseFieldsList()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, fl.Input...)
		case p.at(lexer.Comma) && isFieldish(p.peek(1)):
			p.advance()
		default:
			p.checkArgs(cmdTok, args)
			return n, nil
		}
	}
}

func (p *Parser) cmdLoadjob(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	args := newArgMap()
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
			continue
		}
		if p.atValue() {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, v)
			continue
		}
		break
	}
	if args.Has("savedsearch") {
		n.Content = append(n.Content, args.GetString("savedsearch"))
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdLookup(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	file, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n.Content = append(n.Content, file)
	if isFieldish(p.cur()) && !p.atFieldListStop() {
		in, err := p.parseAnyFieldsList()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, in.Input...)
		n.Input = append(n.Input, in.Output...)
	}
	if p.at(lexer.Output) || p.at(lexer.OutputNew) {
		p.advance()
		out, err := p.parseAnyFieldsList()
		if err != nil {
			return nil, err
		}
		n.Output = out.Input
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdMap(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
			continue
		}
		if p.atValue() {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, v)
			continue
		}
		break
	}
	if args.Has("search") {
		n.Content = append(n.Content, args.GetString("search"))
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdMetasearch(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	if d := p.cat.Lookup(cmdTok.Cmd); d != nil {
		n.Output = d.CreatedList()
	}
	if !p.atCommandEnd() {
		flt := p.parseFilters()
		n.Input = flt.Input
		n.Content = flt.Content
	}
	return n, nil
}

func (p *Parser) cmdMstats(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	aggs, err := p.parseAggTermsList()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, aggs.Input...)
	n.Output = append(n.Output, aggs.Output...)
	n.Content = append(n.Content, aggs.Content...)
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	if p.atCmd("where") {
		p.advance()
		flt := p.parseFilters()
		n.Input = append(n.Input, flt.Input...)
		n.Content = append(n.Content, flt.Content...)
		tail, err := p.parseArgsList()
		if err != nil {
			return nil, err
		}
		args.Extend(tail)
	}
	if p.at(lexer.By) || p.at(lexer.GroupBy) {
		p.advance()
		fl, err := p.parseFieldsList()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, fl.Input...)
		n.Output = append(n.Output, fl.Input...)
		tail, err := p.parseArgsList()
		if err != nil {
			return nil, err
		}
		args.Extend(tail)
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdMultikv(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	d := p.cat.Lookup(cmdTok.Cmd)
	for {
		switch {
		case p.atArgsTerm():
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
		case p.atCmd("fields"):
			p.advance()
			fl, err := p.parseFieldsList()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, fl.Input...)
		case p.at(lexer.Filter):
			p.advance()
			vals, err := p.parseValuesList()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, vals...)
		case p.at(lexer.Name):
			// Unrecognized selector keyword.
			sel := p.advance().Value
			if d != nil && !contains(d.Selectors, sel) {
				p.diags.Report(cmdTok.Pos, p.prevEnd(),
					fmt.Sprintf("Unexpected selector %s in %s, expected %v", sel, cmdTok.Cmd, d.Selectors),
					nil, sel)
			}
			if _, err := p.parseValuesList(); err != nil {
				return nil, err
			}
		default:
			p.checkArgs(cmdTok, args)
			return n, nil
		}
	}
}

func (p *Parser) cmdMultisearch() (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	if !p.at(lexer.LBrack) {
		return nil, &syntaxError{tok: p.cur()}
	}
	for p.at(lexer.LBrack) {
		sub, err := p.parseSubsearch()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, sub.Input...)
		n.Output = append(n.Output, sub.Output...)
		n.Content = append(n.Content, sub.Content...)
	}
	return n, nil
}

func (p *Parser) cmdOutputlookup(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args := newArgMap()
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
			continue
		}
		if isFieldish(p.cur()) {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, f)
			continue
		}
		break
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdPivot(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	args := newArgMap()
	model, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	dataset, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n.Content = append(n.Content, model, dataset)

	for {
		switch {
		case p.at(lexer.Comma):
			p.advance()
		case p.at(lexer.Name) && p.peek(1).Kind == lexer.LParen:
			// Cell value: fun(field) [as alias]
			p.advance()
			p.advance()
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
			n.Input = append(n.Input, f)
			if p.at(lexer.As) {
				p.advance()
				alias, err := p.parseFieldName()
				if err != nil {
					return nil, err
				}
				n.Output = append(n.Output, alias)
			}
		case p.at(lexer.SplitRow), p.at(lexer.SplitCol):
			if err := p.parsePivotSplit(n, args); err != nil {
				return nil, err
			}
		case p.at(lexer.Filter):
			p.advance()
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, f)
			switch p.cur().Kind {
			case lexer.CompOp, lexer.In, lexer.Name:
				p.advance()
			default:
				return nil, &syntaxError{tok: p.cur()}
			}
			if _, err := p.parseValue(); err != nil {
				return nil, err
			}
		case p.at(lexer.Limit):
			p.advance()
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, f)
			if _, err := p.expect(lexer.By); err != nil {
				return nil, err
			}
			if p.at(lexer.Bottom) || p.atCmd("top") {
				p.advance()
			} else {
				return nil, &syntaxError{tok: p.cur()}
			}
			if _, err := p.expect(lexer.Number); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.Name); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.LParen); err != nil {
				return nil, err
			}
			af, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, af)
			if _, err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
		case p.at(lexer.RowSummary), p.at(lexer.ColSummary), p.at(lexer.ShowOther):
			p.advance()
			if _, err := p.expect(lexer.Name); err != nil {
				return nil, err
			}
		case p.atCmd("sort"):
			p.advance()
			if p.at(lexer.Number) {
				p.advance()
			}
			sc, err := p.parseSortClause()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, sc.Input...)
			if p.at(lexer.Name) {
				p.advance()
			}
		default:
			p.checkArgs(cmdTok, args)
			return n, nil
		}
	}
}

// parsePivotSplit consumes SPLITROW/SPLITCOL with its optional range,
// period and label decorations.
func (p *Parser) parsePivotSplit(n *Node, args *argMap) error {
	p.advance() // splitrow / splitcol
	f, err := p.parseFieldName()
	if err != nil {
		return err
	}
	n.Input = append(n.Input, f)
	out := f
	if p.at(lexer.As) {
		p.advance()
		alias, err := p.parseFieldName()
		if err != nil {
			return err
		}
		out = alias
	}
	n.Output = append(n.Output, out)
	switch p.cur().Kind {
	case lexer.Range:
		p.advance()
		terms, err := p.parseArgsList()
		if err != nil {
			return err
		}
		args.Extend(terms)
	case lexer.Period:
		p.advance()
		name, err := p.expect(lexer.Name)
		if err != nil {
			return err
		}
		n.Content = append(n.Content, name.Value)
	case lexer.TrueLabel:
		p.advance()
		lbl, err := p.parseFieldName()
		if err != nil {
			return err
		}
		n.Content = append(n.Content, lbl)
		if p.at(lexer.FalseLabel) {
			p.advance()
			lbl, err := p.parseFieldName()
			if err != nil {
				return err
			}
			n.Content = append(n.Content, lbl)
		}
	case lexer.FalseLabel:
		p.advance()
		lbl, err := p.parseFieldName()
		if err != nil {
			return err
		}
		n.Content = append(n.Content, lbl)
	}
	return nil
}

var upperLowerRe = regexp.MustCompile(`^(upper|lower)\d{2}$`)

func (p *Parser) cmdPredict(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args := newArgMap()
	for {
		switch {
		case p.atArgsTerm():
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
		case p.atRFieldTerm():
			t, err := p.parseRFieldTerm()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, t.Input...)
			n.Output = append(n.Output, t.Output...)
		case isFieldish(p.cur()):
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, f)
		case p.at(lexer.Comma) && isFieldish(p.peek(1)):
			p.advance()
		default:
			// upperNN/lowerNN arguments normalize to upperXX/lowerXX for
			// catalog validation; their values are new fields.
			for _, arg := range append([]string{}, args.Keys()...) {
				if upperLowerRe.MatchString(arg) {
					n.Output = append(n.Output, args.GetString(arg))
					args.Rename(arg, arg[:len(arg)-2]+"XX")
				}
				if arg == "correlate" || arg == "suppress" {
					n.Input = append(n.Input, args.GetString(arg))
				}
			}
			p.checkArgs(cmdTok, args)
			return n, nil
		}
	}
}

func (p *Parser) cmdRangemap(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	d := p.cat.Lookup(cmdTok.Cmd)
	for _, arg := range args.Keys() {
		if d != nil && !d.HasArg(arg) {
			// Every unknown argument is a user-defined range name.
			n.Input = append(n.Input, arg)
		} else if arg == "field" {
			n.Input = append(n.Input, args.GetString(arg))
		}
		n.Content = append(n.Content, args.GetString(arg))
	}
	return n, nil
}

func (p *Parser) cmdRedistribute(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.By) {
		p.advance()
		fl, err := p.parseFieldsList()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, fl.Input...)
	}
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdRegex() (*Node, error) {
	n := newNode("command")
	if p.at(lexer.String) {
		n.Content = append(n.Content, p.advance().Value)
		return n, nil
	}
	f, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, f)
	if !p.at(lexer.Eq) && !p.at(lexer.Neq) {
		return nil, &syntaxError{tok: p.cur()}
	}
	p.advance()
	s, err := p.expect(lexer.String)
	if err != nil {
		return nil, err
	}
	n.Content = append(n.Content, s.Value)
	return n, nil
}

func (p *Parser) cmdReplace() (*Node, error) {
	n := newNode("command")
	for first := true; ; first = false {
		if !first {
			if p.at(lexer.Comma) {
				p.advance()
			} else if !p.atValue() {
				break
			}
		}
		from, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.With); err != nil {
			return nil, err
		}
		to, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		n.Content = append(n.Content, from, to)
	}
	if p.at(lexer.In) {
		p.advance()
		fl, err := p.parseFieldsList()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, fl.Input...)
	}
	return n, nil
}

func (p *Parser) cmdRest(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	args := newArgMap()
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
			continue
		}
		if p.at(lexer.Name) {
			n.Content = append(n.Content, p.advance().Value)
			continue
		}
		break
	}
	d := p.cat.Lookup(cmdTok.Cmd)
	for _, arg := range args.Keys() {
		if d != nil && !d.HasArg(arg) {
			n.Input = append(n.Input, args.GetString(arg))
		}
	}
	return n, nil
}

func (p *Parser) cmdReturn() (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	n.Output = append(n.Output, "search")
	if p.at(lexer.Number) {
		p.advance()
	}
	for {
		if p.atArgsTerm() {
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, term.Keys()...)
			continue
		}
		if isFieldish(p.cur()) {
			f, err := p.parseFieldName()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, strings.TrimPrefix(f, "$"))
			continue
		}
		break
	}
	return n, nil
}

var namedGroupRe = regexp.MustCompile(`\?<([^>]+)>`)

func (p *Parser) cmdRex(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	if p.at(lexer.String) {
		pattern := p.advance().Value
		for _, m := range namedGroupRe.FindAllStringSubmatch(pattern, -1) {
			n.Output = append(n.Output, m[1])
		}
	}
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	p.checkArgs(cmdTok, args)
	return n, nil
}

func (p *Parser) cmdSavedsearch(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	args := newArgMap()
	var fields []string
	if err := p.collectArgsAndFields(args, &fields); err != nil {
		return nil, err
	}
	n.Content = append(n.Content, fields...)
	d := p.cat.Lookup(cmdTok.Cmd)
	for _, arg := range args.Keys() {
		if d != nil && !d.HasArg(arg) {
			n.Content = append(n.Content, args.GetString(arg))
		}
	}
	return n, nil
}

func (p *Parser) cmdSearchtxn(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectGenerate
	f, err := p.parseFieldName()
	if err != nil {
		return nil, err
	}
	n.Content = append(n.Content, f)
	flt := p.parseFilters()
	d := p.cat.Lookup(cmdTok.Cmd)
	for _, in := range flt.Input {
		if d == nil || !d.HasArg(in) {
			n.Input = append(n.Input, in)
		}
	}
	return n, nil
}

func (p *Parser) cmdStreamstats(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectExtend
	args := newArgMap()
	sawAggs := false
	for {
		switch {
		case p.atArgsTerm() && p.peek(2).Kind == lexer.QLParen:
			// name="(" expression ")" — a quoted parenthesized window
			// expression.
			key := strings.ToLower(p.advance().Value)
			p.advance() // =
			p.advance() // "("
			expr, err := p.parseLogicExp()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.QRParen); err != nil {
				return nil, err
			}
			args.Set(key, `"("`+expr+`")"`)
		case p.atArgsTerm():
			term, err := p.parseArgsTerm()
			if err != nil {
				return nil, err
			}
			args.Extend(term)
		case p.at(lexer.Comma):
			p.advance()
		case !sawAggs && p.atAggTerm():
			aggs, err := p.parseAggTermsList()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, aggs.Input...)
			n.Output = append(n.Output, aggs.Output...)
			sawAggs = true
		case p.at(lexer.By):
			p.advance()
			fl, err := p.parseFieldsList()
			if err != nil {
				return nil, err
			}
			n.Input = append(n.Input, fl.Input...)
		default:
			p.checkArgs(cmdTok, args)
			return n, nil
		}
	}
}

func (p *Parser) cmdTimechart(cmdTok lexer.Token) (*Node, error) {
	n := newNode("command")
	n.Effect = EffectReplace
	n.Output = append(n.Output, "_time")
	args, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	aggs, err := p.parseAggOrEvalList()
	if err != nil {
		return nil, err
	}
	n.Input = append(n.Input, aggs.Input...)
	n.Output = append(n.Output, aggs.Output...)
	n.Content = append(n.Content, aggs.Content...)
	if p.at(lexer.By) {
		p.advance()
		f, err := p.parseFieldName()
		if err != nil {
			return nil, err
		}
		n.Input = append(n.Input, f)
		n.Output = append(n.Output, f)
	}
	tail, err := p.parseArgsList()
	if err != nil {
		return nil, err
	}
	args.Extend(tail)
	if p.atCmd("where") {
		p.advance()
		if _, err := p.parseChartWhere(); err != nil {
			return nil, err
		}
		tail, err := p.parseArgsList()
		if err != nil {
			return nil, err
		}
		args.Extend(tail)
	}
	p.checkArgs(cmdTok, args)
	return n, nil
}
