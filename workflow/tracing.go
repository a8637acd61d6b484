package workflow

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Write workflows carry spans so slow accepts/bundles show up in traces next
// to the otelgorm query spans.
var tracer trace.Tracer = otel.Tracer("comunidad-backend/workflow")
