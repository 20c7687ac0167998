// Package benchmarks measures the request path end to end against an
// in-process tunnel endpoint.
package benchmarks

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/erp-vau-go/pkg/auth"
	"github.com/ajitpratap0/erp-vau-go/pkg/client"
	"github.com/ajitpratap0/erp-vau-go/pkg/innerhttp"
	"github.com/ajitpratap0/erp-vau-go/pkg/transport"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau/vautest"
)

type task struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id,omitempty"`
	Status       string `json:"status,omitempty"`
}

const taskBody = `{"resourceType":"Task","id":"160.000.000.000.001.05","status":"draft"}`

func taskHandler(*vau.OpenedRequest, *innerhttp.Request) *innerhttp.Response {
	return &innerhttp.Response{
		StatusCode: http.StatusCreated,
		Reason:     "Created",
		Header:     map[string]string{"Content-Type": "application/fhir+json;charset=utf-8"},
		Body:       taskBody,
	}
}

type bench struct {
	server     *vautest.Server
	httpClient *http.Client
	client     *client.Client
}

func newBench(tb testing.TB) *bench {
	tb.Helper()

	server := vautest.NewServer(tb, taskHandler)
	httpClient := &http.Client{Transport: &http.Transport{}, Timeout: 10 * time.Second}

	channel, err := vau.NewChannel(vau.Config{BaseURL: server.URL, ClientType: vau.ClientTypePS},
		vau.WithTransport(transport.NewHTTPTransportWithClient(httpClient)),
		vau.WithCertificateCache(vau.NewCertificateCache()))
	require.NoError(tb, err)

	tokens := auth.NewTokenProvider(auth.AuthenticatorFunc(func(context.Context) auth.AuthResult {
		return auth.Succeeded("benchmark-token", time.Hour)
	}))

	c, err := client.New(client.DefaultConfig(), channel, tokens)
	require.NoError(tb, err)
	require.NoError(tb, c.Initialize(context.Background()))

	return &bench{server: server, httpClient: httpClient, client: c}
}

func createTask() client.Command {
	return client.NewCommand(http.MethodPost, "Task").
		WithOperation("$create").
		WithBody(map[string]any{
			"resourceType": "Parameters",
			"parameter": []map[string]any{{
				"name":        "workflowType",
				"valueCoding": map[string]string{"code": "160"},
			}},
		})
}

func BenchmarkClientDo(b *testing.B) {
	bb := newBench(b)
	ctx := context.Background()

	b.Run("CreateTask", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := client.Do[task](ctx, bb.client, createTask()); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("GetTask", func(b *testing.B) {
		cmd := client.NewCommand(http.MethodGet, "Task").WithID("160.000.000.000.001.05")
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := client.Do[task](ctx, bb.client, cmd); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Parallel", func(b *testing.B) {
		b.ReportAllocs()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if _, err := client.Do[task](ctx, bb.client, createTask()); err != nil {
					b.Error(err)
					return
				}
			}
		})
	})
}

func BenchmarkInnerHTTP(b *testing.B) {
	req := innerhttp.NewRequest(http.MethodPost, "Task/$create").
		AddHeader("Accept-Charset", "utf-8").
		AddHeader("Authorization", "Bearer benchmark-token").
		AddHeader("Accept", "application/fhir+json").
		AddHeader("Content-Type", "application/fhir+json")
	req.Body = []byte(taskBody)
	req.AddHeader("Content-Length", strconv.Itoa(len(req.Body)))

	raw := innerhttp.EncodeResponse(&innerhttp.Response{
		Prefix:     "1 0f2c8a77b0e4a1d9",
		StatusCode: http.StatusCreated,
		Reason:     "Created",
		Header:     map[string]string{"Content-Type": "application/fhir+json", "Content-Length": strconv.Itoa(len(taskBody))},
		Body:       taskBody,
	})

	b.Run("Encode", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = innerhttp.Encode(req)
		}
	})

	b.Run("Decode", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := innerhttp.Decode(raw); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkECIES(b *testing.B) {
	key, cert := vautest.NewIdentity(b)
	responder, err := vau.NewResponder(key, nil)
	require.NoError(b, err)

	protocol, err := vau.ECIESProvider{}.NewProtocol(cert)
	require.NoError(b, err)

	inner := innerhttp.Encode(innerhttp.NewRequest(http.MethodGet, "Task"))

	b.Run("Encrypt", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := protocol.Encrypt("benchmark-token", inner); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Open", func(b *testing.B) {
		envelope, err := protocol.Encrypt("benchmark-token", inner)
		require.NoError(b, err)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := responder.Open(envelope.Ciphertext()); err != nil {
				b.Fatal(err)
			}
		}
	})
}
