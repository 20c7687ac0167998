package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	erperrors "github.com/ajitpratap0/erp-vau-go/pkg/errors"
	"github.com/ajitpratap0/erp-vau-go/pkg/fhir"
	"github.com/ajitpratap0/erp-vau-go/pkg/vau"
)

const sampleConfig = `
vau:
  base_url: "https://erp-ref.zentral.erp.splitdns.ti-dienste.de"
  client_type: fdv
  api_key: "fdv-api-key"
  user_agent: "erp-vau-go/1.0"
transport:
  connection:
    connect_timeout: 2s
    tls:
      insecure_skip_verify: true
  retry:
    max_retries: 3
    retry_delay: 250ms
client:
  accept_mime: application/fhir+xml
  validate_response: true
logging:
  level: debug
  format: json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "erp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultNeedsBaseURL(t *testing.T) {
	config := Default()
	err := config.Validate()
	require.Error(t, err)
	assert.True(t, erperrors.IsCode(err, erperrors.CodeInvalidConfiguration))

	config.VAU.BaseURL = "https://erp.example"
	assert.NoError(t, config.Validate())
}

func TestLoadFile(t *testing.T) {
	config, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://erp-ref.zentral.erp.splitdns.ti-dienste.de", config.VAU.BaseURL)
	assert.Equal(t, vau.ClientTypeFdV, config.VAU.ClientType)
	assert.Equal(t, "fdv-api-key", config.VAU.APIKey)
	assert.Equal(t, "erp-vau-go/1.0", config.VAU.UserAgent)

	assert.Equal(t, 2*time.Second, config.Transport.Connection.ConnectTimeout)
	assert.True(t, config.Transport.Connection.TLS.InsecureSkipVerify)
	assert.Equal(t, 3, config.Transport.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, config.Transport.Retry.RetryDelay)

	assert.Equal(t, fhir.FhirXML, config.Client.AcceptMime)
	assert.True(t, config.Client.ValidateResponse)
	assert.Equal(t, FormatJSON, config.Logging.Format)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	config, err := Load(writeConfig(t, "vau:\n  base_url: https://erp.example\n"))
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, defaults.Transport.Retry, config.Transport.Retry)
	assert.Equal(t, defaults.Transport.Connection.RequestTimeout, config.Transport.Connection.RequestTimeout)
	assert.Equal(t, "1.2", config.Transport.Connection.TLS.MinVersion)
	assert.Equal(t, defaults.Client, config.Client)
	assert.Equal(t, vau.ClientTypePS, config.VAU.ClientType)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("ERP_VAU__BASE_URL", "https://override.example")
	t.Setenv("ERP_TRANSPORT__RETRY__MAX_RETRIES", "0")
	t.Setenv("ERP_CLIENT__SEND_MIME", "application/json")

	config, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://override.example", config.VAU.BaseURL)
	assert.Equal(t, 0, config.Transport.Retry.MaxRetries)
	assert.Equal(t, fhir.JSON, config.Client.SendMime)
	assert.Equal(t, 250*time.Millisecond, config.Transport.Retry.RetryDelay)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("TEST_ERP_VAU__BASE_URL", "https://prefixed.example")

	config, err := NewLoader(WithEnvPrefix("TEST_ERP_")).Load()
	require.NoError(t, err)
	assert.Equal(t, "https://prefixed.example", config.VAU.BaseURL)
}

func TestLoadMap(t *testing.T) {
	l := NewLoader(WithEnvPrefix("ERP_TEST_UNSET_"))
	require.NoError(t, l.LoadMap(map[string]any{
		"vau.base_url":                "https://flags.example",
		"transport.retry.max_retries": 5,
	}))
	assert.Equal(t, "https://flags.example", l.Get("vau.base_url"))

	config, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 5, config.Transport.Retry.MaxRetries)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    int
	}{
		{
			name:    "negative retries",
			content: "vau:\n  base_url: https://erp.example\ntransport:\n  retry:\n    max_retries: -1\n",
			code:    erperrors.CodeInvalidParameter,
		},
		{
			name:    "unknown client type",
			content: "vau:\n  base_url: https://erp.example\n  client_type: kiosk\n",
			code:    erperrors.CodeInvalidConfiguration,
		},
		{
			name:    "missing base url",
			content: "logging:\n  level: info\n",
			code:    erperrors.CodeInvalidConfiguration,
		},
		{
			name:    "unknown media type",
			content: "vau:\n  base_url: https://erp.example\nclient:\n  send_mime: text/html\n",
			code:    erperrors.CodeInvalidConfiguration,
		},
		{
			name:    "unknown log level",
			content: "vau:\n  base_url: https://erp.example\nlogging:\n  level: chatty\n",
			code:    erperrors.CodeInvalidConfiguration,
		},
		{
			name:    "unknown log format",
			content: "vau:\n  base_url: https://erp.example\nlogging:\n  format: xml\n",
			code:    erperrors.CodeInvalidConfiguration,
		},
		{
			name:    "unknown exporter",
			content: "vau:\n  base_url: https://erp.example\ntracing:\n  enabled: true\n  exporter: zipkin\n",
			code:    erperrors.CodeInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, erperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "vau.base_url", envKey("ERP_", "ERP_VAU__BASE_URL"))
	assert.Equal(t, "transport.connection.tls.insecure_skip_verify",
		envKey("ERP_", "ERP_TRANSPORT__CONNECTION__TLS__INSECURE_SKIP_VERIFY"))
}
