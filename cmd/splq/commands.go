package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/splq/splq/internal/catalog"
)

// newCommandsCmd lists the cataloged SPL commands and their accepted
// arguments.
func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands [name]",
		Short: "List recognized SPL commands and their arguments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(args) == 1 {
				name := strings.ToLower(args[0])
				d := cat.Lookup(name)
				if d == nil {
					return fmt.Errorf("unknown command %q", name)
				}
				fmt.Fprintf(w, "%s\n", name)
				if len(d.Args) > 0 {
					fmt.Fprintf(w, "  arguments: %s\n", strings.Join(d.Args, ", "))
				} else {
					fmt.Fprintf(w, "  arguments: none\n")
				}
				if created := d.CreatedList(); len(created) > 0 {
					fmt.Fprintf(w, "  creates:   %s\n", strings.Join(created, ", "))
				}
				return nil
			}
			for _, name := range cat.Names() {
				d := cat.Lookup(name)
				fmt.Fprintf(w, "%-18s %s\n", name, strings.Join(d.Args, ", "))
			}
			return nil
		},
	}
}
