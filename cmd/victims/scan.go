package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victims/victims"
)

func (a *app) scanCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan [flags] PATH...",
		Short: "Scan paths for vulnerable packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := a.libscan(ctx, true)
			if err != nil {
				return err
			}
			defer l.Close()

			r, err := l.Scan(ctx, args...)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(r); err != nil {
					return err
				}
			} else {
				for _, m := range r.Matches {
					fmt.Fprintf(a.stdout, "%s: %s\n", m.Package, m.Record.CVEs)
				}
				fmt.Fprintf(a.stdout, "Scanned %d packages\n", r.Scanned)
			}
			for _, f := range r.Failures {
				fmt.Fprintf(a.stderr, "unable to check %s\n", f)
			}
			return scanResult(r)
		},
	}
	fs := cmd.Flags()
	fs.BoolP("look-inside", "l", false, "scan packages for hidden packages")
	fs.String("suffixes", "", "comma separated package suffixes to look for")
	fs.Int("max-depth", 0, "levels of nested archives to open with --look-inside")
	fs.String("converter", "", "RPM to cpio converter")
	fs.Int("workers", 0, "packages to fingerprint concurrently")
	fs.String("algorithm", "", "fingerprint algorithm, sha512 or sha3-512")
	fs.BoolVarP(&asJSON, "json", "j", false, "print the report as JSON")
	a.v.BindPFlag(keyLookInside, fs.Lookup("look-inside"))
	a.v.BindPFlag(keySuffixes, fs.Lookup("suffixes"))
	a.v.BindPFlag(keyMaxDepth, fs.Lookup("max-depth"))
	a.v.BindPFlag(keyConverter, fs.Lookup("converter"))
	a.v.BindPFlag(keyWorkers, fs.Lookup("workers"))
	a.v.BindPFlag(keyAlgorithm, fs.Lookup("algorithm"))
	return cmd
}

// ScanResult maps a report to the exit status. Vulnerabilities take
// precedence over an incomplete scan.
func scanResult(r *victims.Report) error {
	switch {
	case r.Vulnerable():
		return &exitError{code: exitFound}
	case !r.Complete():
		return &exitError{
			code: exitIncomplete,
			msg:  fmt.Sprintf("scan incomplete: %d artifact(s) could not be checked", len(r.Failures)),
		}
	default:
		return nil
	}
}
