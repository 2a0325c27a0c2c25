package libscan

import (
	"github.com/victims/victims/archive"
	"github.com/victims/victims/datastore"
	"github.com/victims/victims/finder"
	"github.com/victims/victims/fingerprint"
	"github.com/victims/victims/matcher"
)

// DefaultMaxDepth is the nesting depth examined when looking inside archives.
const DefaultMaxDepth = 1

// Options are dependencies and options for constructing an instance of
// Libscan.
type Options struct {
	// Store is the vulnerability corpus. If nil, one is opened from
	// DatabaseURL and closed with the Libscan.
	Store datastore.Store
	// DatabaseURL locates the corpus. See [OpenStore] for the accepted forms.
	//
	// If both Store and DatabaseURL are empty, only FindHash is usable.
	DatabaseURL string

	// Suffixes are the recognized package suffixes. If empty,
	// [finder.DefaultSuffixes] is used.
	Suffixes []string
	// LookInside enables discovery of packages nested inside archives.
	LookInside bool
	// MaxDepth bounds nested discovery. If less than one, [DefaultMaxDepth]
	// is used.
	MaxDepth int
	// Converter is the RPM to cpio converter. If empty,
	// [archive.DefaultConverter] is used.
	Converter string
	// ConvertConcurrency bounds concurrent converter processes. If less than
	// one, the number of CPUs is used.
	ConvertConcurrency int
	// TempDir is where compressed tarballs are spooled. If empty, the
	// system default is used.
	TempDir string

	// Algorithm selects the fingerprint algorithm. If empty,
	// [fingerprint.Default] is used. It must match the corpus.
	Algorithm fingerprint.Algorithm
	// Workers is the number of packages hashed concurrently.
	Workers int
	// Policy controls what happens when a package can't be hashed.
	Policy matcher.Policy
}

func (o *Options) finderOptions() *finder.Options {
	opts := finder.Options{
		Suffixes:   o.Suffixes,
		LookInside: o.LookInside,
		MaxDepth:   o.MaxDepth,
	}
	if opts.MaxDepth < 1 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if o.Converter != "" {
		opts.Archive = append(opts.Archive, archive.WithConverter(o.Converter))
	}
	if o.ConvertConcurrency > 0 {
		opts.Archive = append(opts.Archive, archive.WithConcurrency(o.ConvertConcurrency))
	}
	if o.TempDir != "" {
		opts.Archive = append(opts.Archive, archive.WithTempDir(o.TempDir))
	}
	return &opts
}
