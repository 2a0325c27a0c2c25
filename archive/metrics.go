package archive

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metrics singletons.
var (
	tracer trace.Tracer
	meter  metric.Meter
)

var (
	// OpenCounter counts archives opened, by kind.
	openCounter metric.Int64Counter
	// ConvertDuration records how long the RPM converter runs.
	convertDuration metric.Float64Histogram
)

func init() {
	const pkgname = `github.com/victims/victims/archive`
	tracer = otel.Tracer(pkgname)
	meter = otel.Meter(pkgname)

	var err error
	openCounter, err = meter.Int64Counter("archive.open.count",
		metric.WithDescription("total number of archives opened"),
		metric.WithUnit("{archive}"),
	)
	if err != nil {
		panic(err)
	}
	convertDuration, err = meter.Float64Histogram("archive.convert.duration",
		metric.WithDescription("duration of RPM payload conversions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}
