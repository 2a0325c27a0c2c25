package victims

import (
	"encoding/json"
	"strings"

	"github.com/package-url/packageurl-go"
)

// Record is one entry of the vulnerability corpus: a fingerprint known to
// belong to a vulnerable package.
type Record struct {
	Fingerprint Fingerprint `json:"hash"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Vendor      string      `json:"vendor"`
	// CVEs is the comma-joined list of identifiers, as stored in the corpus.
	CVEs      string `json:"cves"`
	DBVersion int    `json:"db_version"`
	Format    Format `json:"format"`
}

// CVEList splits the CVEs field.
func (r *Record) CVEList() []string {
	var out []string
	for c := range strings.SplitSeq(r.CVEs, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// PURL renders the record as a package-url.
func (r *Record) PURL() packageurl.PackageURL {
	var typ, ns string
	switch r.Format {
	case "JAR", "WAR", "EAR":
		typ, ns = packageurl.TypeMaven, r.Vendor
	case "EGG":
		typ = packageurl.TypePyPi
	case "RPM":
		typ, ns = packageurl.TypeRPM, strings.ToLower(r.Vendor)
	default:
		typ, ns = packageurl.TypeGeneric, r.Vendor
	}
	q := packageurl.Qualifiers{
		{Key: "checksum", Value: "sha512:" + string(r.Fingerprint)},
	}
	return *packageurl.NewPackageURL(typ, ns, r.Name, r.Version, q, "")
}

// Match pairs a discovered Package with a corpus Record that has the same
// fingerprint.
type Match struct {
	Package *Package `json:"package"`
	Record  *Record  `json:"record"`
}

// Failure records an artifact that could not be fully introspected or
// fingerprinted, so vulnerability matching could not be performed on it.
type Failure struct {
	Package *Package
	Err     error
}

func (f Failure) String() string {
	return f.Package.String() + ": " + f.Err.Error()
}

// MarshalJSON implements json.Marshaler.
func (f Failure) MarshalJSON() ([]byte, error) {
	var msg string
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Package *Package `json:"package"`
		Error   string   `json:"error"`
	}{f.Package, msg})
}
