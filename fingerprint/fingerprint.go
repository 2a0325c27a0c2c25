// Package fingerprint computes the content digests used to match artifacts
// against the vulnerability corpus.
//
// A fingerprint depends only on an artifact's bytes: the same content yields
// the same [victims.Fingerprint] regardless of its name or where it was found.
package fingerprint

import (
	"context"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/victims/victims"
)

// Algorithm names a supported digest.
type Algorithm string

// Supported algorithms.
const (
	SHA512  Algorithm = "sha512"
	SHA3512 Algorithm = "sha3-512"
)

// Default is the algorithm the public corpus is keyed by.
const Default = SHA512

var algorithms = map[Algorithm]func() hash.Hash{
	SHA512:  sha512.New,
	SHA3512: func() hash.Hash { return sha3.New512() },
}

// Hasher computes fingerprints with one algorithm.
//
// A Hasher is safe for concurrent use.
type Hasher struct {
	alg Algorithm
	new func() hash.Hash
}

// New returns a Hasher for the named algorithm. The empty string selects
// [Default].
func New(alg Algorithm) (*Hasher, error) {
	if alg == "" {
		alg = Default
	}
	fn, ok := algorithms[alg]
	if !ok {
		return nil, &victims.Error{
			Op:      "fingerprint.New",
			Kind:    victims.ErrInvalid,
			Message: fmt.Sprintf("unknown algorithm %q", alg),
		}
	}
	return &Hasher{alg: alg, new: fn}, nil
}

var std = sync.OnceValue(func() *Hasher {
	h, err := New(Default)
	if err != nil {
		panic(err)
	}
	return h
})

// Algorithm reports the Hasher's algorithm.
func (h *Hasher) Algorithm() Algorithm { return h.alg }

// Reader fingerprints everything remaining in "r".
func (h *Hasher) Reader(r io.Reader) (victims.Fingerprint, error) {
	d := h.new()
	buf := getBuf()
	defer putBuf(buf)
	if _, err := io.CopyBuffer(d, r, *buf); err != nil {
		return "", &victims.Error{
			Op:      "fingerprint.Reader",
			Kind:    victims.ErrIO,
			Message: "unable to read content",
			Inner:   err,
		}
	}
	return victims.NewFingerprint(d.Sum(nil)), nil
}

// File fingerprints the file at "path".
func (h *Hasher) File(path string) (victims.Fingerprint, error) {
	const op = `fingerprint.File`
	f, err := os.Open(path)
	if err != nil {
		return "", &victims.Error{
			Op:      op,
			Kind:    victims.ErrIO,
			Message: "unable to open artifact",
			Inner:   err,
		}
	}
	defer f.Close()
	fp, err := h.Reader(f)
	if err != nil {
		return "", fmt.Errorf("%s: %s: %w", op, path, err)
	}
	return fp, nil
}

// Package fingerprints the Package's content.
//
// Extracted content held by the Package is consumed and released, whether or
// not hashing succeeds.
func (h *Hasher) Package(ctx context.Context, p *victims.Package) (victims.Fingerprint, error) {
	defer p.Release()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rc, err := p.Open()
	if err != nil {
		return "", err
	}
	fp, err := h.Reader(rc)
	if cerr := rc.Close(); cerr != nil && err == nil {
		slog.DebugContext(ctx, "error closing content", "package", p, "reason", cerr)
	}
	if err != nil {
		return "", fmt.Errorf("fingerprint: %v: %w", p, err)
	}
	slog.DebugContext(ctx, "fingerprinted",
		"package", p,
		"algorithm", h.alg,
		"fingerprint", fp)
	return fp, nil
}

// Reader fingerprints "r" with the [Default] algorithm.
func Reader(r io.Reader) (victims.Fingerprint, error) {
	return std().Reader(r)
}

// File fingerprints the file at "path" with the [Default] algorithm.
func File(path string) (victims.Fingerprint, error) {
	return std().File(path)
}

// Package fingerprints "p" with the [Default] algorithm.
func Package(ctx context.Context, p *victims.Package) (victims.Fingerprint, error) {
	return std().Package(ctx, p)
}
