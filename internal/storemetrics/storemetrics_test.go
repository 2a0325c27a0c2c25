package storemetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWith(reg, "datastore_test")

	run := func(name string, fail bool) (err error) {
		defer m.Query(name).Start(&err)()
		if fail {
			err = errors.New("boom")
		}
		return err
	}
	run("lookup", false)
	run("lookup", false)
	run("lookup", true)
	run("delete", false)

	for _, tc := range []struct {
		query, success string
		want           float64
	}{
		{"lookup", "true", 2},
		{"lookup", "false", 1},
		{"delete", "true", 1},
	} {
		c := m.counter.With(prometheus.Labels{"query": tc.query, "success": tc.success})
		if got := testutil.ToFloat64(c); got != tc.want {
			t.Errorf("%s/%s: got: %v, want: %v", tc.query, tc.success, got, tc.want)
		}
	}
	// One histogram series per label set.
	if got, want := testutil.CollectAndCount(m.timer), 3; got != want {
		t.Errorf("histogram series: got: %d, want: %d", got, want)
	}

	// The returned function is safe to call twice.
	var err error
	done := m.Query("lookup").Start(&err)
	done()
	done()
	if got := testutil.ToFloat64(m.counter.With(prometheus.Labels{"query": "lookup", "success": "true"})); got != 3 {
		t.Errorf("got: %v, want: 3", got)
	}
}
