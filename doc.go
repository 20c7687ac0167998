// Package erp is a client for the E-Rezept (ERP) FHIR service reached through
// the VAU tunnel, the encrypted channel that terminates inside the trusted
// execution environment of the service.
//
// This package is the root of the module. It re-exports the constructors of
// the sub-packages and wires them into a Session built from a Config.
//
// # Overview
//
// The module consists of several sub-packages:
//
//   - pkg/innerhttp: Encodes inner requests and decodes inner responses
//   - pkg/transport: Retrying HTTP transport with logging, metrics and tracing
//   - pkg/vau: The tunnel channel, certificate cache and ECIES sealing
//   - pkg/auth: Bearer token provider on top of an identity provider
//   - pkg/fhir: Media types, payload codec, validation and OperationOutcome
//   - pkg/client: Commands and the request orchestrator
//   - pkg/config: YAML and environment configuration
//
// # Creating a Session
//
//	cfg, err := erp.LoadConfig("erp.yaml")
//	if err != nil {
//	    // Handle error
//	}
//
//	session, err := erp.NewSession(cfg, authenticator)
//	if err != nil {
//	    // Handle error
//	}
//	defer session.Close(context.Background())
//
//	// Fetches the tunnel certificate and the first access token
//	if err := session.Initialize(ctx); err != nil {
//	    // Handle error
//	}
//
//	resp, err := erp.Do[Task](ctx, session,
//	    erp.NewCommand(http.MethodGet, "Task").WithID("160.000.000.000.001.05"))
//
// A non-2xx answer of the service is not an error: check resp.IsSuccess and
// resp.Outcome. Errors are reserved for failures of the transport, the tunnel,
// the token provider, payload validation and decoding; they carry a code from
// pkg/errors.
//
// # Examples
//
// The examples directory holds create-task, which creates a Task and reads it
// back.
package erp
