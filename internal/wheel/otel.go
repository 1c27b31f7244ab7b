package wheel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skidline/racecore/internal/wheel"

// newMeter is replaced in tests.
var newMeter = func() metric.Meter {
	return otel.Meter(instrumentationName)
}
