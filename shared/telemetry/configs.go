package telemetry

const defaultServiceVersion = "1.0.0"

// NewConfigForService creates the telemetry config for a service
func NewConfigForService(serviceName, otlpEndpoint string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: defaultServiceVersion,
		OTLPEndpoint:   otlpEndpoint,
	}
}
