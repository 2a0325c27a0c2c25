package main

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"
)

func (a *app) findHashCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "find-hash -n REGEX PATH...",
		Short: "Print fingerprints of packages whose name matches a pattern",
		Long: `Find-hash walks the paths, looking inside archives, and prints the
fingerprint of every package whose file name matches the pattern.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			re, err := regexp.Compile(name)
			if err != nil {
				return &exitError{
					code: exitInternal,
					msg:  fmt.Sprintf("you must provide a string or valid regex with --name/-n: %v", err),
				}
			}
			l, err := a.libscan(ctx, false)
			if err != nil {
				return err
			}
			defer l.Close()
			hs, fails, err := l.FindHash(ctx, re, args...)
			if err != nil {
				return err
			}
			for _, h := range hs {
				fmt.Fprintln(a.stdout, h)
			}
			for _, f := range fails {
				fmt.Fprintf(a.stderr, "unable to check %s\n", f)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "name or regex of the file(s) to look for")
	cmd.MarkFlagRequired("name")
	return cmd
}
