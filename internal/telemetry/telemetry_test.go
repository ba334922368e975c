package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/kundali/internal/config"
)

func TestSetupWithoutEndpointRecordsSpans(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.Telemetry{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := Tracer().Start(context.Background(), "probe")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions("collector:4318", false), 1)
	assert.Len(t, exporterOptions("collector:4318", true), 2)
	assert.Len(t, exporterOptions("http://collector:4318", false), 2)
	assert.Len(t, exporterOptions("https://collector:4318", false), 1)
}
