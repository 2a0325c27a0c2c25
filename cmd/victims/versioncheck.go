package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victims/victims"
)

func (a *app) versionCheckCmd() *cobra.Command {
	var (
		name, version string
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "version-check -p NAME -v VERSION",
		Short: "Print corpus records for a package version",
		Long: `Version-check prints the corpus records for a package name and version.
The version may also be a constraint such as ">= 1.2, < 2".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, err := a.libscan(ctx, true)
			if err != nil {
				return err
			}
			defer l.Close()
			rs, err := l.VersionCheck(ctx, name, version)
			if err != nil {
				return err
			}
			if asJSON {
				if rs == nil {
					rs = []*victims.Record{}
				}
				return json.NewEncoder(a.stdout).Encode(rs)
			}
			for _, r := range rs {
				fmt.Fprintf(a.stdout, "Hash: %s\nVendor: %s\nCVES: %s\n", r.Fingerprint, r.Vendor, r.CVEs)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&name, "package-name", "p", "", "name of the package")
	fs.StringVarP(&version, "package-version", "v", "", "version of the package")
	fs.BoolVarP(&asJSON, "json-output", "j", false, "output as JSON")
	cmd.MarkFlagRequired("package-name")
	cmd.MarkFlagRequired("package-version")
	return cmd
}
