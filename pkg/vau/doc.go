// Package vau implements the client side of the VAU tunnel: the encrypted
// channel that carries every inner HTTP request to the trusted execution
// environment of the service.
//
// A Channel is created per session. Initialize fetches the tunnel certificate
// (once per process through a CertificateCache) and derives the crypto
// context, after which Send encrypts an inner request, posts it to
// <base>/VAU/<pseudonym>, and decrypts and decodes the answer:
//
//	channel, err := vau.NewChannel(vau.Config{
//		BaseURL:    "https://erp-ref.example",
//		ClientType: vau.ClientTypePS,
//		UserAgent:  "erp-vau-go/1.0",
//	})
//	if err != nil {
//		return err
//	}
//	if err := channel.Initialize(ctx); err != nil {
//		return err
//	}
//
//	req := innerhttp.NewRequest("GET", "/Task").AddHeader("Accept", "application/fhir+json")
//	result, err := channel.Send(ctx, req, accessToken, "/Task")
//
// The default CryptoProvider is ECIESProvider. Responder implements the
// server half of the same scheme and backs the in-process tunnel endpoint
// used in tests.
package vau
