// Package pkg holds the components of the ERP VAU client.
//
// # Request path
//
// A request flows through the sub-packages in this order:
//
//	client.Do
//	  -> auth.TokenProvider      bearer token, refreshed when expired
//	  -> fhir.Codec / Validator  payload encoding and optional validation
//	  -> innerhttp.Encode        inner HTTP request
//	  -> vau.Channel.Send        ECIES sealing, pseudonym routing
//	  -> transport.Transport     retrying POST /VAU/{pseudonym}
//
// The answer takes the same way back: the channel opens the sealed response,
// innerhttp decodes it and the client decodes the payload into the requested
// resource type or an OperationOutcome.
//
// # Sub-packages
//
//   - innerhttp: Inner request and response format
//   - transport: HTTP transport, retry and observability middleware
//   - vau: Tunnel channel, certificate cache, ECIES crypto provider
//   - auth: Authenticators and the bearer token provider
//   - fhir: Media types, JSON codec, JSON Schema validation
//   - client: Commands and the request orchestrator
//   - config: Configuration loading with koanf
//   - errors: Structured error codes
//   - logging: Structured logger
//   - observability: Prometheus metrics and OpenTelemetry tracing
//   - utils: Test helpers
package pkg
