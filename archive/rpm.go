package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cavaliergopher/cpio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/victims/victims"
)

// RpmArchive holds the regular files of an RPM payload in memory.
//
// The payload is produced by an external converter that writes a cpio stream
// to stdout; the stream is captured completely before it's parsed.
type rpmArchive struct {
	path  string
	names []string
	files map[string][]byte
}

var _ Archive = (*rpmArchive)(nil)

// WaitDelay bounds how long a converter's output pipes are waited on after it
// exits or is killed.
const waitDelay = 5 * time.Second

func (o *Opener) openRPM(ctx context.Context, prov, path string) (*rpmArchive, error) {
	out, err := o.convert(ctx, prov, path)
	if err != nil {
		return nil, err
	}
	return parseCpio(ctx, prov, out)
}

// OpenRPMBytes writes an extracted RPM to a temporary file so the converter
// can read it.
func (o *Opener) openRPMBytes(ctx context.Context, prov string, b []byte) (*rpmArchive, error) {
	f, err := os.CreateTemp(o.tmpdir, "victims.rpm.*")
	if err != nil {
		return nil, &victims.Error{
			Op:      `archive.FromMember`,
			Kind:    victims.ErrIO,
			Message: "unable to create spool",
			Inner:   err,
		}
	}
	defer os.Remove(f.Name())
	_, err = f.Write(b)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, extractErr(`archive.FromMember`, prov, err)
	}
	return o.openRPM(ctx, prov, f.Name())
}

// Convert runs the converter over "path" and returns its standard output.
//
// The converter runs in its own process group, which is killed as a whole if
// the Context is done.
func (o *Opener) convert(ctx context.Context, prov, path string) ([]byte, error) {
	const op = `archive.convert`
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer o.sem.Release(1)
	log := slog.With("converter", o.converter, "path", prov)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, o.converter, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	log.DebugContext(ctx, "start")
	start := time.Now()
	err := cmd.Run()
	convertDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.Bool("success", err == nil),
	))
	switch {
	case err == nil:
	case ctx.Err() != nil:
		log.DebugContext(ctx, "converter interrupted", "reason", err)
		return nil, fmt.Errorf("%s: %s: %w", op, prov, context.Cause(ctx))
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrExtract,
			Message: fmt.Sprintf("converter %q not found", o.converter),
			Inner:   err,
		}
	default:
		msg := "converter failed"
		if s := summarize(stderr.String()); s != "" {
			msg += " (" + s + ")"
		}
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrExtract,
			Message: prov + ": " + msg,
			Inner:   err,
		}
	}
	log.DebugContext(ctx, "done", "size", stdout.Len(), "elapsed", time.Since(start))
	return stdout.Bytes(), nil
}

// Summarize trims converter diagnostics to something fit for one log line.
func summarize(s string) string {
	const limit = 512
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", "; ")
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// ParseCpio builds the member table from a cpio stream.
func parseCpio(ctx context.Context, prov string, out []byte) (*rpmArchive, error) {
	const op = `archive.parseCpio`
	if len(out) == 0 {
		return nil, &victims.Error{
			Op:      op,
			Kind:    victims.ErrExtract,
			Message: prov + ": converter produced no output",
		}
	}
	a := rpmArchive{
		path:  prov,
		files: make(map[string][]byte),
	}
	br := bytes.NewReader(out)
	rd := cpio.NewReader(br)
	for {
		h, err := rd.Next()
		switch {
		case errors.Is(err, nil):
		case errors.Is(err, io.EOF):
			slog.DebugContext(ctx, "parsed payload", "path", prov, "members", len(a.names))
			return &a, nil
		default:
			return nil, &victims.Error{
				Op:      op,
				Kind:    victims.ErrExtract,
				Message: prov + ": malformed cpio stream",
				Inner:   err,
			}
		}
		if !h.Mode.IsRegular() {
			continue
		}
		// The reader doesn't buffer, so what's left in "br" bounds the member.
		if h.Size < 0 || h.Size > int64(br.Len()) {
			return nil, &victims.Error{
				Op:      op,
				Kind:    victims.ErrExtract,
				Message: fmt.Sprintf("%s: malformed cpio stream: member %q claims %d bytes, %d remain", prov, h.Name, h.Size, br.Len()),
			}
		}
		b := make([]byte, h.Size)
		if _, err := io.ReadFull(rd, b); err != nil {
			return nil, &victims.Error{
				Op:      op,
				Kind:    victims.ErrExtract,
				Message: fmt.Sprintf("%s: malformed cpio stream: member %q", prov, h.Name),
				Inner:   err,
			}
		}
		n := normName(h.Name)
		if _, ok := a.files[n]; !ok {
			a.names = append(a.names, n)
		}
		a.files[n] = b
	}
}

func (a *rpmArchive) Kind() Kind       { return RPM }
func (a *rpmArchive) Handleable() bool { return true }
func (a *rpmArchive) Path() string     { return a.path }

func (a *rpmArchive) Names(_ context.Context) ([]string, error) {
	return a.names, nil
}

func (a *rpmArchive) Open(ctx context.Context, name string) (*Member, error) {
	n := normName(name)
	b, ok := a.files[n]
	if !ok {
		return nil, &victims.Error{
			Op:      `archive.rpmArchive.Open`,
			Kind:    victims.ErrInvalid,
			Message: a.path + "!" + name,
			Inner:   fs.ErrNotExist,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newMember(a.path, n, b), nil
}

func (a *rpmArchive) Close() error {
	a.files = nil
	return nil
}
