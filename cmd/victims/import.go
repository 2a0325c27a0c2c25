package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/victims/victims"
)

func (a *app) importCmd() *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "import [--remove] FILE...",
		Short: "Load corpus records from local files",
		Long: `Import reads JSON arrays of records, in the form printed by
"version-check -j", and upserts them into the corpus. With --remove the
records whose hashes are listed are deleted instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var rs []*victims.Record
			for _, name := range args {
				b, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				var chunk []*victims.Record
				if err := json.Unmarshal(b, &chunk); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				rs = append(rs, chunk...)
			}
			l, err := a.libscan(ctx, true)
			if err != nil {
				return err
			}
			defer l.Close()
			var add []*victims.Record
			var del []victims.Fingerprint
			if remove {
				for _, r := range rs {
					if r != nil {
						del = append(del, r.Fingerprint)
					}
				}
			} else {
				add = rs
			}
			res, err := l.Load(ctx, add, del)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Upserted %d records, removed %d, corpus version %d\n",
				res.Upserted, res.Removed, res.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "delete the listed records instead of adding them")
	return cmd
}
