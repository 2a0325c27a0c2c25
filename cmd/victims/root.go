package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/victims/victims/fingerprint"
	"github.com/victims/victims/internal/log"
	"github.com/victims/victims/libscan"
	"github.com/victims/victims/matcher"
)

type app struct {
	v       *viper.Viper
	cfgFile string
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		v:      newViper(),
		stdout: stdout,
		stderr: stderr,
	}
	root := &cobra.Command{
		Use:   "victims",
		Short: "Find packages with known vulnerabilities",
		Long: `Victims walks file trees looking for Java, Python, and RPM packages,
fingerprints them, and reports any whose fingerprint is in the
vulnerability corpus.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	fs := root.PersistentFlags()
	fs.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $HOME/.victims/config.ini)")
	fs.String("database-url", "", "corpus location, e.g. sqlite:////var/lib/victims.db")
	fs.String("log-level", "", "log level: debug, info, warn, or error")
	a.v.BindPFlag(keyDatabaseURL, fs.Lookup("database-url"))
	a.v.BindPFlag(keyLogLevel, fs.Lookup("log-level"))

	root.AddCommand(
		a.scanCmd(),
		a.findHashCmd(),
		a.versionCheckCmd(),
		a.importCmd(),
	)
	return root
}

// Setup reads the configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := readConfig(a.v, a.cfgFile); err != nil {
		return &exitError{code: exitInternal, msg: err.Error()}
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(a.v.GetString(keyLogLevel))); err != nil {
		return &exitError{code: exitInternal, msg: fmt.Sprintf("bad log level: %v", err)}
	}
	h := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(log.WrapHandler(h)))
	cmd.SetContext(log.With(cmd.Context(), "command", cmd.Name()))
	slog.DebugContext(cmd.Context(), "configured", "config", a.v.ConfigFileUsed())
	return nil
}

// Options builds library options from the merged configuration.
func (a *app) options(withStore bool) (*libscan.Options, error) {
	opts := libscan.Options{
		Suffixes:           splitList(a.v.GetString(keySuffixes)),
		LookInside:         a.v.GetBool(keyLookInside),
		MaxDepth:           a.v.GetInt(keyMaxDepth),
		Converter:          a.v.GetString(keyConverter),
		ConvertConcurrency: a.v.GetInt(keyConvertConcurrency),
		TempDir:            a.v.GetString(keyTempDir),
		Algorithm:          fingerprint.Algorithm(a.v.GetString(keyAlgorithm)),
		Workers:            a.v.GetInt(keyWorkers),
	}
	switch p := strings.ToLower(a.v.GetString(keyPolicy)); p {
	case "", "partial":
		opts.Policy = matcher.Partial
	case "abort":
		opts.Policy = matcher.Abort
	default:
		return nil, fmt.Errorf("unknown policy %q", p)
	}
	if withStore {
		opts.DatabaseURL = a.v.GetString(keyDatabaseURL)
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("no database url configured")
		}
	}
	return &opts, nil
}

func (a *app) libscan(ctx context.Context, withStore bool) (*libscan.Libscan, error) {
	opts, err := a.options(withStore)
	if err != nil {
		return nil, err
	}
	return libscan.New(ctx, opts)
}
