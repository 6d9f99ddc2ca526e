package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/splq/splq"
)

// printReport renders an analysis result as a short text summary or as
// JSON.
func printReport(w io.Writer, res *splq.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	main := res.Data.Main
	fmt.Fprintf(w, "input fields:  %s\n", joinOrDash(main.Input))
	fmt.Fprintf(w, "output fields: %s\n", joinOrDash(main.Output))
	if len(main.Effects) > 0 {
		effects := make([]string, len(main.Effects))
		for i, e := range main.Effects {
			effects[i] = e.String()
		}
		fmt.Fprintf(w, "field effects: %s\n", strings.Join(effects, " | "))
	}
	for _, sub := range res.Data.Subsearches {
		fmt.Fprintf(w, "subsearch (level %d): input %s, output %s\n",
			sub.Level, joinOrDash(sub.Data.Input), joinOrDash(sub.Data.Output))
	}
	if res.ErrorsCount > 0 {
		fmt.Fprintf(w, "problems: %d\n", res.ErrorsCount)
		for _, id := range res.Errors.List {
			ds := res.Errors.Ref[id]
			d := ds[len(ds)-1]
			fmt.Fprintf(w, "  [%d->%d] %s\n", d.StartPos, d.EndPos, d.Message)
		}
	}
	return nil
}

func joinOrDash(fields []string) string {
	if len(fields) == 0 {
		return "-"
	}
	return strings.Join(fields, ", ")
}
