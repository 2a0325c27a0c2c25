package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/victims/victims"
	"github.com/victims/victims/test"
)

func TestDetect(t *testing.T) {
	tt := []struct {
		Name string
		Want Kind
	}{
		{"app.jar", Zip},
		{"APP.JAR", Zip},
		{"site.war", Zip},
		{"bundle.ear", Zip},
		{"dist.zip", Zip},
		{"src.tar.gz", Tar},
		{"src.TGZ", Tar},
		{"src.tar.zst", Tar},
		{"src.tar.xz", Tar},
		{"src.tar", Tar},
		{"pkg-1.0-1.x86_64.rpm", RPM},
		{"lib.egg", Unrecognized},
		{"notes.txt", Unrecognized},
		{"gz", Unrecognized},
	}
	for _, tc := range tt {
		if got := Detect(tc.Name); got != tc.Want {
			t.Errorf("%s: got: %v, want: %v", tc.Name, got, tc.Want)
		}
	}
}

func readAll(t *testing.T, m *Member) string {
	t.Helper()
	b, err := io.ReadAll(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestZip(t *testing.T) {
	ctx := test.Logging(t)
	dir := t.TempDir()
	path := test.WriteFile(t, dir, "app.war", test.ZipBytes(t,
		test.E("WEB-INF/", ""),
		test.E("WEB-INF/lib/inner.jar", "inner"),
		test.E("./index.html", "<html>"),
	))

	a, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if !a.Handleable() || a.Kind() != Zip {
		t.Fatalf("unexpected archive: kind %v, handleable %v", a.Kind(), a.Handleable())
	}
	names, err := a.Names(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"WEB-INF/lib/inner.jar", "index.html"}; !cmp.Equal(names, want) {
		t.Error(cmp.Diff(names, want))
	}

	m, err := a.Open(ctx, "WEB-INF/lib/inner.jar")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := m.Parent, path; got != want {
		t.Errorf("parent: got: %q, want: %q", got, want)
	}
	if got, want := m.Base(), "inner.jar"; got != want {
		t.Errorf("base: got: %q, want: %q", got, want)
	}
	if got, want := readAll(t, m), "inner"; got != want {
		t.Errorf("content: got: %q, want: %q", got, want)
	}
	if _, err := m.Read(make([]byte, 1)); !errors.Is(err, errClosed) {
		t.Errorf("read after close: %v", err)
	}

	if _, err := a.Open(ctx, "missing.jar"); !errors.Is(err, victims.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got: %v", err)
	}

	t.Run("Corrupt", func(t *testing.T) {
		p := test.WriteFile(t, t.TempDir(), "broken.jar", []byte("definitely not a zip"))
		_, err := Open(ctx, p)
		if !errors.Is(err, victims.ErrExtract) {
			t.Errorf("expected ErrExtract, got: %v", err)
		}
	})
}

func TestTar(t *testing.T) {
	ctx := test.Logging(t)
	entries := []test.Entry{
		test.E("./opt/", ""),
		test.E("./opt/app/lib/a.jar", "aaaa"),
		test.E("opt/app/README", "read me"),
		test.E("opt/app/lib/a.jar", "replaced"),
	}
	tt := []struct {
		Name string
		Comp test.Compression
	}{
		{"src.tar", test.Uncompressed},
		{"src.tar.gz", test.Gzip},
		{"src.tgz", test.Gzip},
		{"src.tar.zst", test.Zstd},
		{"src.tar.xz", test.Xz},
	}
	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			spool := t.TempDir()
			path := test.WriteFile(t, t.TempDir(), tc.Name, test.TarBytes(t, tc.Comp, entries...))
			a, err := Open(ctx, path, WithTempDir(spool))
			if err != nil {
				t.Fatal(err)
			}
			if a.Kind() != Tar {
				t.Fatalf("got kind %v", a.Kind())
			}
			names, _ := a.Names(ctx)
			if want := []string{"opt/app/lib/a.jar", "opt/app/README"}; !cmp.Equal(names, want) {
				t.Error(cmp.Diff(names, want))
			}
			m, err := a.Open(ctx, "opt/app/lib/a.jar")
			if err != nil {
				t.Fatal(err)
			}
			if got, want := readAll(t, m), "replaced"; got != want {
				t.Errorf("got: %q, want: %q", got, want)
			}
			m, err = a.Open(ctx, "opt/app/README")
			if err != nil {
				t.Fatal(err)
			}
			if got, want := readAll(t, m), "read me"; got != want {
				t.Errorf("got: %q, want: %q", got, want)
			}
			if err := a.Close(); err != nil {
				t.Error(err)
			}
			ents, err := os.ReadDir(spool)
			if err != nil {
				t.Fatal(err)
			}
			if len(ents) != 0 {
				t.Errorf("spool not removed: %v", ents)
			}
		})
	}

	t.Run("Corrupt", func(t *testing.T) {
		p := test.WriteFile(t, t.TempDir(), "bad.tar.gz", []byte("not gzip"))
		_, err := Open(ctx, p, WithTempDir(t.TempDir()))
		if !errors.Is(err, victims.ErrExtract) {
			t.Errorf("expected ErrExtract, got: %v", err)
		}
	})
}

func TestRPM(t *testing.T) {
	ctx := test.Logging(t)
	path := test.WriteFile(t, t.TempDir(), "tomcat-7.0.rpm", []byte("not inspected by the fake converter"))
	payload := test.CpioBytes(t,
		test.E("./usr/", ""),
		test.E("./usr/share/java/", ""),
		test.E("./usr/share/java/tomcat.jar", "tomcat"),
		test.E("./etc/tomcat.conf", "conf"),
	)

	t.Run("Success", func(t *testing.T) {
		a, err := Open(ctx, path, WithConverter(test.FakeConverter(t, payload)))
		if err != nil {
			t.Fatal(err)
		}
		defer a.Close()
		if a.Kind() != RPM || !a.Handleable() {
			t.Fatalf("unexpected archive: %v", a.Kind())
		}
		names, _ := a.Names(ctx)
		if want := []string{"usr/share/java/tomcat.jar", "etc/tomcat.conf"}; !cmp.Equal(names, want) {
			t.Error(cmp.Diff(names, want))
		}
		m, err := a.Open(ctx, "usr/share/java/tomcat.jar")
		if err != nil {
			t.Fatal(err)
		}
		if got, want := m.Provenance(), path+"!usr/share/java/tomcat.jar"; got != want {
			t.Errorf("got: %q, want: %q", got, want)
		}
		if got, want := readAll(t, m), "tomcat"; got != want {
			t.Errorf("got: %q, want: %q", got, want)
		}
	})

	t.Run("ConverterFails", func(t *testing.T) {
		_, err := Open(ctx, path, WithConverter(test.FailingConverter(t)))
		if !errors.Is(err, victims.ErrExtract) {
			t.Fatalf("expected ErrExtract, got: %v", err)
		}
		if !strings.Contains(err.Error(), "not an rpm package") {
			t.Errorf("converter stderr missing from error: %v", err)
		}
	})

	t.Run("ConverterMissing", func(t *testing.T) {
		_, err := Open(ctx, path, WithConverter("/nonexistent/rpm2cpio"))
		if !errors.Is(err, victims.ErrExtract) {
			t.Errorf("expected ErrExtract, got: %v", err)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		t.Run("Garbage", func(t *testing.T) {
			_, err := Open(ctx, path, WithConverter(test.FakeConverter(t, []byte("this is not cpio at all, not even close"))))
			if !errors.Is(err, victims.ErrExtract) {
				t.Errorf("expected ErrExtract, got: %v", err)
			}
		})
		t.Run("OversizedMember", func(t *testing.T) {
			b := test.CpioBytes(t, test.E("big.jar", "x"))
			// The newc header is the magic followed by 8-digit hex fields;
			// the seventh field is the file size.
			const sizeOff = 6 + 6*8
			if got := string(b[sizeOff : sizeOff+8]); got != "00000001" {
				t.Fatalf("unexpected header layout: size field %q", got)
			}
			copy(b[sizeOff:], "FFFFFFF0")

			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := parseCpio(ctx, path, b)
			runtime.ReadMemStats(&after)
			if !errors.Is(err, victims.ErrExtract) {
				t.Fatalf("expected ErrExtract, got: %v", err)
			}
			if !strings.Contains(err.Error(), "big.jar") {
				t.Errorf("member missing from error: %v", err)
			}
			if n := after.TotalAlloc - before.TotalAlloc; n > 16<<20 {
				t.Errorf("allocated %d bytes for a %d byte stream", n, len(b))
			}
		})
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Open(ctx, path, WithConverter(test.FakeConverter(t, nil)))
		if !errors.Is(err, victims.ErrExtract) {
			t.Errorf("expected ErrExtract, got: %v", err)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		conv := test.SlowConverter(t)
		ctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := Open(ctx, path, WithConverter(conv))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got: %v", err)
		}
		if errors.Is(err, victims.ErrExtract) {
			t.Errorf("cancellation reported as extraction failure: %v", err)
		}
		if d := time.Since(start); d >= waitDelay {
			t.Errorf("converter outlived cancellation: %v", d)
		}
	})
}

func TestUnrecognized(t *testing.T) {
	ctx := test.Logging(t)
	path := test.WriteFile(t, t.TempDir(), "lib.egg", []byte("PK\x03\x04"))
	a, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("unrecognized suffix should not fail: %v", err)
	}
	defer a.Close()
	if a.Handleable() {
		t.Error("unrecognized archive reported as handleable")
	}
	names, err := a.Names(ctx)
	if err != nil || len(names) != 0 {
		t.Errorf("got names %v, err %v", names, err)
	}
	if _, err := a.Open(ctx, "x"); !errors.Is(err, victims.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got: %v", err)
	}
}

func TestFromMember(t *testing.T) {
	ctx := test.Logging(t)
	inner := test.ZipBytes(t, test.E("WEB-INF/lib/deep.jar", "deep"))
	tgz := test.TarBytes(t, test.Gzip, test.E("lib/x.jar", "x"))
	payload := test.CpioBytes(t, test.E("./usr/share/java/r.jar", "r"))
	path := test.WriteFile(t, t.TempDir(), "outer.zip", test.ZipBytes(t,
		test.E("apps/inner.war", string(inner)),
		test.E("dist/bundle.tgz", string(tgz)),
		test.E("rpms/tool.rpm", "rpm bytes"),
		test.E("docs/readme.txt", "hi"),
	))
	o := NewOpener(WithConverter(test.FakeConverter(t, payload)), WithTempDir(t.TempDir()))
	outer, err := o.Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer outer.Close()

	tt := []struct {
		Member string
		Kind   Kind
		Names  []string
	}{
		{"apps/inner.war", Zip, []string{"WEB-INF/lib/deep.jar"}},
		{"dist/bundle.tgz", Tar, []string{"lib/x.jar"}},
		{"rpms/tool.rpm", RPM, []string{"usr/share/java/r.jar"}},
		{"docs/readme.txt", Unrecognized, nil},
	}
	for _, tc := range tt {
		t.Run(tc.Member, func(t *testing.T) {
			m, err := outer.Open(ctx, tc.Member)
			if err != nil {
				t.Fatal(err)
			}
			defer m.Close()
			a, err := o.FromMember(ctx, m)
			if err != nil {
				t.Fatal(err)
			}
			defer a.Close()
			if a.Kind() != tc.Kind {
				t.Errorf("got kind %v, want %v", a.Kind(), tc.Kind)
			}
			if got, want := a.Path(), path+"!"+tc.Member; got != want {
				t.Errorf("got: %q, want: %q", got, want)
			}
			names, _ := a.Names(ctx)
			if !cmp.Equal(names, tc.Names) {
				t.Error(cmp.Diff(names, tc.Names))
			}
			for _, n := range names {
				nm, err := a.Open(ctx, n)
				if err != nil {
					t.Fatal(err)
				}
				if got, want := nm.Parent, a.Path(); got != want {
					t.Errorf("got: %q, want: %q", got, want)
				}
				nm.Close()
			}
			// The enclosing member is still readable afterwards.
			if m.Size() == 0 {
				t.Error("member emptied by FromMember")
			}
		})
	}

	t.Run("Closed", func(t *testing.T) {
		m, err := outer.Open(ctx, "apps/inner.war")
		if err != nil {
			t.Fatal(err)
		}
		m.Close()
		if _, err := o.FromMember(ctx, m); !errors.Is(err, victims.ErrInvalid) {
			t.Errorf("expected ErrInvalid, got: %v", err)
		}
	})
}
