// Package telemetry wires OpenTelemetry tracing with an OTLP gRPC exporter.
package telemetry
