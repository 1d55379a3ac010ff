package app

import (
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/lumeno-study/lumeno/internal/configuration"
)

// StartTracing starts the Datadog tracer when enabled. The returned stop
// function is never nil.
func StartTracing(cfg configuration.TracingConfig) func() {
	if !cfg.Enabled {
		return func() {}
	}
	tracer.Start(
		tracer.WithService(cfg.ServiceName),
		tracer.WithAgentAddr(cfg.AgentAddr),
	)
	return tracer.Stop
}
