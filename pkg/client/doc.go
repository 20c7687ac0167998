// Package client runs FHIR operations against the E-Rezept service through an
// encrypted VAU channel.
//
// A Client ties together three collaborators:
//
//   - a Channel (normally *vau.Channel) that encrypts inner requests
//   - a TokenSource (normally *auth.TokenProvider) that supplies the bearer token
//   - a fhir.Codec and an optional fhir.Validator for the payloads
//
// # Running a command
//
// Commands describe the inner request. BaseCommand covers the common cases:
//
//	channel, err := vau.NewChannel(vau.Config{
//	    BaseURL:    "https://erp-ref.zentral.erp.splitdns.ti-dienste.de",
//	    ClientType: vau.ClientTypePS,
//	})
//	if err != nil {
//	    return err
//	}
//	tokens := auth.NewTokenProvider(auth.BindSigner(idp, cert, key))
//
//	c, err := client.New(client.DefaultConfig(), channel, tokens)
//	if err != nil {
//	    return err
//	}
//	if err := c.Initialize(ctx); err != nil {
//	    return err
//	}
//
//	cmd := client.NewCommand(http.MethodPost, "Task").
//	    WithOperation("$create").
//	    WithBody(parameters)
//	resp, err := client.Do[Task](ctx, c, cmd)
//	if err != nil {
//	    return err
//	}
//	if !resp.IsSuccess() {
//	    log.Printf("rejected: %s", resp.Outcome.Summary())
//	}
//
// # Headers
//
// The inner request carries the command's headers first, followed by
// Accept-Charset, Authorization, Accept, Content-Type and Content-Length.
// These five replace any command header of the same name regardless of case.
//
// # Errors
//
// Do returns an error only when no answer could be obtained or a 2xx answer
// does not decode into the expected type. Error statuses of the service are
// answers: they come back as a Response with Outcome set.
package client
