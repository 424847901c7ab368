// Command bladec compiles blade templates from the command line, for
// CI checks and for inspecting the generated template text.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/openrender/blade"
)

var viewsDir string

func main() {
	root := &cobra.Command{
		Use:           "bladec",
		Short:         "Compile and inspect blade templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&viewsDir, "views", "views", "template source directory")

	root.AddCommand(checkCmd(), warmCmd(), printCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "bladec:", err)
		os.Exit(1)
	}
}

func engine() *blade.Engine {
	return blade.New(viewsDir)
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [template...]",
		Short: "Compile templates and report errors without rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine()
			n, err := e.Warm(args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d template(s) compiled\n", n)
			return nil
		},
	}
}

func warmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm [pattern...]",
		Short: "Precompile templates matching the given path patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine()
			n, err := e.Warm(args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d template(s)\n", n)
			return nil
		},
	}
}

func printCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print <template>",
		Short: "Print the generated template text for one template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := engine()
			if _, err := e.Warm(args[0]); err != nil {
				return err
			}
			texts := e.GetDebugTemplates()
			names := make([]string, 0, len(texts))
			for name := range texts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "// %s\n%s\n", name, texts[name])
			}
			return nil
		},
	}
}
