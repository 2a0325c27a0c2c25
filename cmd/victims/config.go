package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/victims/victims/finder"
)

// Configuration keys.
const (
	keyDatabaseURL        = `database.url`
	keyLookInside         = `scan.look_inside`
	keySuffixes           = `scan.suffixes`
	keyMaxDepth           = `scan.max_depth`
	keyConverter          = `scan.converter`
	keyConvertConcurrency = `scan.convert_concurrency`
	keyTempDir            = `scan.temp_dir`
	keyWorkers            = `scan.workers`
	keyAlgorithm          = `scan.algorithm`
	keyPolicy             = `scan.policy`
	keyLogLevel           = `log.level`
)

// ConfigDir returns "~/.victims", or the empty string if the home directory
// can't be determined.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".victims")
}

func newViper() *viper.Viper {
	codecs := viper.NewCodecRegistry()
	codecs.RegisterCodec("ini", iniCodec{})
	v := viper.NewWithOptions(viper.WithCodecRegistry(codecs))

	if dir := configDir(); dir != "" {
		v.SetDefault(keyDatabaseURL, "sqlite:///"+filepath.Join(dir, "victims.db"))
	}
	v.SetDefault(keyLookInside, false)
	v.SetDefault(keySuffixes, strings.Join(finder.DefaultSuffixes, ","))
	v.SetDefault(keyMaxDepth, 1)
	v.SetDefault(keyConverter, "rpm2cpio")
	v.SetDefault(keyConvertConcurrency, 0)
	v.SetDefault(keyTempDir, "")
	v.SetDefault(keyWorkers, 1)
	v.SetDefault(keyAlgorithm, "sha512")
	v.SetDefault(keyPolicy, "partial")
	v.SetDefault(keyLogLevel, "warn")

	v.SetEnvPrefix("VICTIMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfig loads the config file into "v".
//
// An explicitly named file must exist. The default file is optional.
func readConfig(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		dir := configDir()
		if dir == "" {
			return nil
		}
		path = filepath.Join(dir, "config.ini")
	}
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	err := v.ReadInConfig()
	switch {
	case err == nil:
		return nil
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return fmt.Errorf("unable to read config %q: %w", path, err)
	}
}

// SplitList splits a comma separated config value.
func splitList(s string) []string {
	var out []string
	for e := range strings.SplitSeq(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
