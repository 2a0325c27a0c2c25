package libscan

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/victims/victims"
	"github.com/victims/victims/datastore/sqlite"
	"github.com/victims/victims/fingerprint"
	"github.com/victims/victims/test"
)

type fixture struct {
	dir   string
	app   []byte // app.jar
	inner []byte // lib.war!WEB-INF/lib/inner.jar
	store *sqlite.Store
}

// Setup writes:
//
//	app.jar
//	notes.txt
//	lib.war (containing WEB-INF/lib/inner.jar)
//
// and a corpus with records for app.jar and inner.jar.
func setup(t *testing.T, ctx context.Context) *fixture {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := fixture{dir: dir}
	f.app = test.ZipBytes(t, test.E("META-INF/MANIFEST.MF", "Implementation-Title: app\n"))
	f.inner = test.ZipBytes(t, test.E("META-INF/MANIFEST.MF", "Implementation-Title: inner\n"))
	test.WriteFile(t, f.dir, "app.jar", f.app)
	test.WriteFile(t, f.dir, "notes.txt", []byte("nothing to see"))
	test.WriteFile(t, f.dir, "lib.war", test.ZipBytes(t,
		test.E("index.html", "<html/>"),
		test.Entry{Name: "WEB-INF/lib/inner.jar", Body: f.inner},
	))

	s, err := sqlite.Open(ctx, sqlite.Memory)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	f.store = s
	_, err = s.UpsertRecords(ctx, []*victims.Record{
		{Fingerprint: fp(t, f.app), Name: "app", Version: "1.0.0", Vendor: "example", CVEs: "CVE-2012-0001", DBVersion: 1, Format: "JAR"},
		{Fingerprint: fp(t, f.inner), Name: "inner", Version: "1.2.0", Vendor: "example", CVEs: "CVE-2012-0002,CVE-2012-0003", DBVersion: 1, Format: "JAR"},
		{Fingerprint: victims.Fingerprint("00ff"), Name: "inner", Version: "2.0.0", Vendor: "example", CVEs: "CVE-2013-0001", DBVersion: 2, Format: "JAR"},
		{Fingerprint: victims.Fingerprint("ff00"), Name: "inner", Version: "snapshot", Vendor: "example", CVEs: "CVE-2013-0002", DBVersion: 2, Format: "JAR"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &f
}

func fp(t *testing.T, b []byte) victims.Fingerprint {
	t.Helper()
	h, err := fingerprint.New(fingerprint.Default)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := h.Reader(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return sum
}

func matchNames(r *victims.Report) []string {
	var out []string
	for _, m := range r.Matches {
		out = append(out, m.Package.Name+"="+m.Record.Name)
	}
	return out
}

func TestScan(t *testing.T) {
	ctx := test.Logging(t)
	f := setup(t, ctx)

	t.Run("TopLevel", func(t *testing.T) {
		l, err := New(ctx, &Options{Store: f.store})
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close()
		r, err := l.Scan(ctx, f.dir)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := r.Scanned, 2; got != want {
			t.Errorf("scanned: got: %d, want: %d", got, want)
		}
		if got, want := matchNames(r), []string{"app.jar=app"}; !cmp.Equal(got, want) {
			t.Error(cmp.Diff(got, want))
		}
		if !r.Complete() || !r.Vulnerable() {
			t.Errorf("complete: %v, vulnerable: %v", r.Complete(), r.Vulnerable())
		}
		if got, want := r.Formats.String(), "{JAR, WAR}"; got != want {
			t.Errorf("got: %s, want: %s", got, want)
		}
	})

	t.Run("LookInside", func(t *testing.T) {
		l, err := New(ctx, &Options{Store: f.store, LookInside: true})
		if err != nil {
			t.Fatal(err)
		}
		r, err := l.Scan(ctx, f.dir)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := r.Scanned, 3; got != want {
			t.Errorf("scanned: got: %d, want: %d", got, want)
		}
		want := []string{"app.jar=app", "inner.jar=inner"}
		if got := matchNames(r); !cmp.Equal(got, want, cmpopts.SortSlices(func(a, b string) bool { return a < b })) {
			t.Error(cmp.Diff(got, want))
		}
		for _, m := range r.Matches {
			if m.Package.Name != "inner.jar" {
				continue
			}
			if got, want := m.Package.Parent, filepath.Join(f.dir, "lib.war"); got != want {
				t.Errorf("parent: got: %q, want: %q", got, want)
			}
			if got, want := m.Record.CVEList(), []string{"CVE-2012-0002", "CVE-2012-0003"}; !cmp.Equal(got, want) {
				t.Error(cmp.Diff(got, want))
			}
		}
	})

	t.Run("MultiplePaths", func(t *testing.T) {
		other := t.TempDir()
		test.WriteFile(t, other, "copy.jar", f.app)
		l, err := New(ctx, &Options{Store: f.store})
		if err != nil {
			t.Fatal(err)
		}
		r, err := l.Scan(ctx, f.dir, other)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := matchNames(r), []string{"app.jar=app", "copy.jar=app"}; !cmp.Equal(got, want) {
			t.Error(cmp.Diff(got, want))
		}
		if got, want := r.Scanned, 3; got != want {
			t.Errorf("scanned: got: %d, want: %d", got, want)
		}
	})

	t.Run("Clean", func(t *testing.T) {
		dir := t.TempDir()
		test.WriteFile(t, dir, "safe.jar", test.ZipBytes(t, test.E("a", "b")))
		l, err := New(ctx, &Options{Store: f.store, Workers: 4})
		if err != nil {
			t.Fatal(err)
		}
		r, err := l.Scan(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if r.Vulnerable() || !r.Complete() || r.Scanned != 1 {
			t.Errorf("unexpected report: %+v", r)
		}
	})

	t.Run("Incomplete", func(t *testing.T) {
		dir := t.TempDir()
		test.WriteFile(t, dir, "broken.jar", []byte("not a zip"))
		l, err := New(ctx, &Options{Store: f.store, LookInside: true})
		if err != nil {
			t.Fatal(err)
		}
		r, err := l.Scan(ctx, dir)
		if err != nil {
			t.Fatal(err)
		}
		if r.Complete() {
			t.Error("expected incomplete report")
		}
		if len(r.Failures) != 1 || !errors.Is(r.Failures[0].Err, victims.ErrExtract) {
			t.Errorf("unexpected failures: %v", r.Failures)
		}
	})

	t.Run("StoreFailure", func(t *testing.T) {
		s, err := sqlite.Open(ctx, sqlite.Memory)
		if err != nil {
			t.Fatal(err)
		}
		s.Close()
		l, err := New(ctx, &Options{Store: s})
		if err != nil {
			t.Fatal(err)
		}
		r, err := l.Scan(ctx, f.dir)
		if !errors.Is(err, victims.ErrStore) {
			t.Errorf("got: %v, want: %v", err, victims.ErrStore)
		}
		if r != nil {
			t.Errorf("unexpected report: %+v", r)
		}
	})

	t.Run("MissingPath", func(t *testing.T) {
		l, err := New(ctx, &Options{Store: f.store})
		if err != nil {
			t.Fatal(err)
		}
		_, err = l.Scan(ctx, filepath.Join(f.dir, "nope"))
		if !errors.Is(err, victims.ErrInvalid) {
			t.Errorf("got: %v, want: %v", err, victims.ErrInvalid)
		}
	})

	t.Run("NoStore", func(t *testing.T) {
		l, err := New(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.Scan(ctx, f.dir); !errors.Is(err, victims.ErrInvalid) {
			t.Errorf("got: %v, want: %v", err, victims.ErrInvalid)
		}
	})
}

func TestFindHash(t *testing.T) {
	ctx := test.Logging(t)
	f := setup(t, ctx)
	l, err := New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, fails, err := l.FindHash(ctx, regexp.MustCompile(`^inner`), f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(fails) != 0 {
		t.Errorf("unexpected failures: %v", fails)
	}
	if len(got) != 1 {
		t.Fatalf("got: %d results, want: 1", len(got))
	}
	if got, want := got[0].Fingerprint, fp(t, f.inner); got != want {
		t.Errorf("got: %s, want: %s", got, want)
	}
	want := "- " + string(fp(t, f.inner)) + " inner.jar (inside " + filepath.Join(f.dir, "lib.war") + ")"
	if got := got[0].String(); got != want {
		t.Errorf("got: %q, want: %q", got, want)
	}
}

func TestVersionCheck(t *testing.T) {
	ctx := test.Logging(t)
	f := setup(t, ctx)
	l, err := New(ctx, &Options{Store: f.store})
	if err != nil {
		t.Fatal(err)
	}
	versions := func(rs []*victims.Record) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Version)
		}
		return out
	}

	table := []struct {
		name, version string
		want          []string
	}{
		{"inner", "1.2.0", []string{"1.2.0"}},
		{"inner", "snapshot", []string{"snapshot"}},
		{"inner", ">= 1.0, < 3", []string{"1.2.0", "2.0.0"}},
		{"inner", ">= 2", []string{"2.0.0"}},
		{"inner", "9.9.9", nil},
		{"app", "~1.0", []string{"1.0.0"}},
	}
	for _, tc := range table {
		t.Run(tc.name+tc.version, func(t *testing.T) {
			rs, err := l.VersionCheck(ctx, tc.name, tc.version)
			if err != nil {
				t.Fatal(err)
			}
			if got := versions(rs); !cmp.Equal(got, tc.want) {
				t.Error(cmp.Diff(got, tc.want))
			}
		})
	}

	t.Run("RPM", func(t *testing.T) {
		_, err := f.store.UpsertRecords(ctx, []*victims.Record{
			{Fingerprint: "0a0a", Name: "httpd", Version: "2.4.6-45.el7", Vendor: "CentOS", CVEs: "CVE-2016-5387", DBVersion: 3, Format: "RPM"},
			{Fingerprint: "0b0b", Name: "httpd", Version: "2.4.6-90.el7", Vendor: "CentOS", CVEs: "CVE-2019-0217", DBVersion: 3, Format: "RPM"},
			{Fingerprint: "0c0c", Name: "httpd", Version: "1:2.2.15-69.el6", Vendor: "CentOS", CVEs: "CVE-2017-3167", DBVersion: 3, Format: "RPM"},
		})
		if err != nil {
			t.Fatal(err)
		}
		rpms := []struct {
			version string
			want    []string
		}{
			{">= 2.4", []string{"1:2.2.15-69.el6", "2.4.6-45.el7", "2.4.6-90.el7"}},
			{"> 2.4.6-45.el7, < 1:0", []string{"2.4.6-90.el7"}},
			{"< 2.4.6-50.el7", []string{"2.4.6-45.el7"}},
			{"= 2.4.6-90.el7 || >= 1:2", []string{"1:2.2.15-69.el6", "2.4.6-90.el7"}},
		}
		for _, tc := range rpms {
			rs, err := l.VersionCheck(ctx, "httpd", tc.version)
			if err != nil {
				t.Fatalf("%s: %v", tc.version, err)
			}
			if got := versions(rs); !cmp.Equal(got, tc.want) {
				t.Errorf("%s: %s", tc.version, cmp.Diff(got, tc.want))
			}
		}
		if _, err := l.VersionCheck(ctx, "httpd", "~2.4"); !errors.Is(err, victims.ErrInvalid) {
			t.Errorf("got: %v, want: %v", err, victims.ErrInvalid)
		}
	})
	t.Run("BadConstraint", func(t *testing.T) {
		_, err := l.VersionCheck(ctx, "inner", ">= banana")
		if !errors.Is(err, victims.ErrInvalid) {
			t.Errorf("got: %v, want: %v", err, victims.ErrInvalid)
		}
	})
	t.Run("Missing", func(t *testing.T) {
		_, err := l.VersionCheck(ctx, "inner", "")
		if !errors.Is(err, victims.ErrInvalid) {
			t.Errorf("got: %v, want: %v", err, victims.ErrInvalid)
		}
	})
}

func TestOpenStore(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	t.Chdir(dir)
	abs := filepath.Join(t.TempDir(), "abs.db")

	table := []struct {
		url  string
		file string
	}{
		{url: "sqlite://"},
		{url: "sqlite:///:memory:"},
		{url: "sqlite:///rel.db", file: filepath.Join(dir, "rel.db")},
		{url: "sqlite:///" + abs, file: abs},
	}
	for _, tc := range table {
		t.Run(tc.url, func(t *testing.T) {
			s, err := OpenStore(ctx, tc.url)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if _, err := s.LatestVersion(ctx); err != nil {
				t.Error(err)
			}
			if tc.file != "" {
				if _, err := os.Stat(tc.file); err != nil {
					t.Error(err)
				}
			}
		})
	}

	for _, u := range []string{"mysql://localhost/victims", "postgres://victims@localhost:notaport/victims"} {
		if _, err := OpenStore(ctx, u); !errors.Is(err, victims.ErrInvalid) {
			t.Errorf("%s: got: %v, want: %v", u, err, victims.ErrInvalid)
		}
	}
}
