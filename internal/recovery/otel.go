package recovery

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skidline/racecore/internal/recovery"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
