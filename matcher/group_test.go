package matcher

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/victims/victims"
	"github.com/victims/victims/fingerprint"
	"github.com/victims/victims/test"
)

func TestGroup(t *testing.T) {
	var g Group
	a := &victims.Package{Name: "a"}
	b := &victims.Package{Name: "b"}
	c := &victims.Package{Name: "c"}
	g.Append("02", a)
	g.Append("01", b)
	g.Append("02", c)

	if got, want := g.Fingerprints(), []victims.Fingerprint{"02", "01"}; !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
	if got, want := g.Packages("02"), []*victims.Package{a, c}; !cmp.Equal(got, want) {
		t.Error(cmp.Diff(got, want))
	}
	if got := g.Packages("03"); got != nil {
		t.Errorf("unexpected packages: %v", got)
	}
	if got, want := g.Len(), 2; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
	if got, want := g.Count(), 3; got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

type content struct {
	io.Reader
	closed *bool
}

func (c content) Close() error {
	*c.closed = true
	return nil
}

func TestNewGroup(t *testing.T) {
	ctx := test.Logging(t)

	t.Run("Duplicates", func(t *testing.T) {
		pkgs := test.GenDuplicatePackages(t, 6)
		g, fails, err := NewGroup(ctx, pkgs, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(fails) != 0 {
			t.Errorf("unexpected failures: %v", fails)
		}
		if got, want := g.Len(), 3; got != want {
			t.Errorf("got: %d fingerprints, want: %d", got, want)
		}
		fps := g.Fingerprints()
		for i, fp := range fps {
			want := []*victims.Package{pkgs[i], pkgs[i+3]}
			if got := g.Packages(fp); !cmp.Equal(got, want) {
				t.Error(cmp.Diff(got, want))
			}
		}
	})

	t.Run("Workers", func(t *testing.T) {
		pkgs := test.GenDuplicatePackages(t, 40)
		pkgs = append(pkgs, &victims.Package{Name: "gone.jar", Path: filepath.Join(t.TempDir(), "gone.jar"), Format: "JAR"})
		seq, seqFails, err := NewGroup(ctx, pkgs, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		con, conFails, err := NewGroup(ctx, pkgs, nil, &GroupOptions{Workers: 8})
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal(seq, con, cmp.AllowUnexported(Group{})) {
			t.Error(cmp.Diff(seq, con, cmp.AllowUnexported(Group{})))
		}
		if len(seqFails) != 1 || len(conFails) != 1 {
			t.Fatalf("got: %d and %d failures, want: 1", len(seqFails), len(conFails))
		}
		if seqFails[0].Package != conFails[0].Package {
			t.Errorf("failures differ: %v, %v", seqFails[0], conFails[0])
		}
	})

	t.Run("Partial", func(t *testing.T) {
		pkgs := test.GenUniquePackages(t, 2)
		gone := &victims.Package{Name: "gone.jar", Path: filepath.Join(t.TempDir(), "gone.jar"), Format: "JAR"}
		pkgs = []*victims.Package{pkgs[0], gone, pkgs[1]}
		g, fails, err := NewGroup(ctx, pkgs, nil, &GroupOptions{Policy: Partial})
		if err != nil {
			t.Fatal(err)
		}
		if got, want := g.Count(), 2; got != want {
			t.Errorf("got: %d, want: %d", got, want)
		}
		if len(fails) != 1 || fails[0].Package != gone {
			t.Fatalf("unexpected failures: %v", fails)
		}
		if !errors.Is(fails[0].Err, victims.ErrIO) {
			t.Errorf("got: %v, want: %v", fails[0].Err, victims.ErrIO)
		}
	})

	t.Run("Abort", func(t *testing.T) {
		var closed bool
		gone := &victims.Package{Name: "gone.jar", Path: filepath.Join(t.TempDir(), "gone.jar"), Format: "JAR"}
		inner := &victims.Package{
			Name:    "inner.jar",
			Member:  "inner.jar",
			Parent:  "/outer.war",
			Format:  "JAR",
			Depth:   1,
			Content: content{Reader: strings.NewReader("x"), closed: &closed},
		}
		_, _, err := NewGroup(ctx, []*victims.Package{gone, inner}, nil, &GroupOptions{Policy: Abort})
		if !errors.Is(err, victims.ErrIO) {
			t.Errorf("got: %v, want: %v", err, victims.ErrIO)
		}
		if !closed {
			t.Error("content of unhashed package not released")
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		pkgs := test.GenUniquePackages(t, 4)
		for _, w := range []int{0, 4} {
			_, _, err := NewGroup(ctx, pkgs, nil, &GroupOptions{Workers: w})
			if !errors.Is(err, context.Canceled) {
				t.Errorf("workers %d: got: %v, want: %v", w, err, context.Canceled)
			}
		}
	})

	t.Run("Algorithm", func(t *testing.T) {
		pkgs := test.GenUniquePackages(t, 1)
		h, err := fingerprint.New(fingerprint.SHA3512)
		if err != nil {
			t.Fatal(err)
		}
		g, _, err := NewGroup(ctx, pkgs, h, nil)
		if err != nil {
			t.Fatal(err)
		}
		want, err := h.File(pkgs[0].Path)
		if err != nil {
			t.Fatal(err)
		}
		if got := g.Fingerprints(); !cmp.Equal(got, []victims.Fingerprint{want}) {
			t.Errorf("got: %v, want: %v", got, want)
		}
	})
}
