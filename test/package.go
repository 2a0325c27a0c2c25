package test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/victims/victims"
)

// GenDuplicatePackages writes "n" top-level JAR packages into a temporary
// directory and returns them. Package "i" has the same content as package
// "i % (n/2)", so every fingerprint is shared by two or more packages.
//
// It is an error to ask for fewer than two packages.
func GenDuplicatePackages(t testing.TB, n int) []*victims.Package {
	t.Helper()
	if n < 2 {
		t.Fatalf("cannot create duplicate packages with n = %d, n must be > 1", n)
	}
	return genPackages(t, n, n/2)
}

// GenUniquePackages writes "n" top-level JAR packages with distinct content
// into a temporary directory and returns them.
func GenUniquePackages(t testing.TB, n int) []*victims.Package {
	t.Helper()
	return genPackages(t, n, n)
}

func genPackages(t testing.TB, n, mod int) []*victims.Package {
	t.Helper()
	dir := t.TempDir()
	pkgs := make([]*victims.Package, n)
	for i := range n {
		name := fmt.Sprintf("package-%d.jar", i)
		body := ZipBytes(t, E("META-INF/MANIFEST.MF", fmt.Sprintf("Implementation-Version: %d\n", i%mod)))
		p := WriteFile(t, dir, name, body)
		pkgs[i] = &victims.Package{
			Name:   filepath.Base(p),
			Path:   p,
			Format: "JAR",
		}
	}
	return pkgs
}
