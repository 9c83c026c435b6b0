package message

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validMessage = `{
	"source": {
		"url": "https://source.example.org/bucket/file.mxf",
		"headers": {"host": "s3.example.org"},
		"credentials": "kv2/source"
	},
	"destination": {
		"host": "dest.example.org",
		"path": "/data/incoming/file.mxf",
		"credentials": "kv2/destination"
	},
	"outcome": {
		"pulsar-topic": "transfer-outcomes"
	}
}`

func TestParse(t *testing.T) {
	req, err := Parse([]byte(validMessage))
	require.NoError(t, err)

	assert.Equal(t, "https://source.example.org/bucket/file.mxf", req.Source.URL)
	assert.Equal(t, "s3.example.org", req.HostHeader())
	assert.Equal(t, "kv2/source", req.Source.Credentials)
	assert.Equal(t, "dest.example.org", req.Destination.Host)
	assert.Equal(t, "/data/incoming/file.mxf", req.Destination.Path)
	assert.Equal(t, "kv2/destination", req.Destination.Credentials)
	assert.Equal(t, "transfer-outcomes", req.Outcome.PulsarTopic)
}

func TestParseOptionalSourceCredentials(t *testing.T) {
	raw := `{
		"source": {"url": "https://s.example.org/f", "headers": {}},
		"destination": {"host": "d", "path": "/p", "credentials": "kv2/d"},
		"outcome": {"pulsar-topic": "t"}
	}`
	req, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, req.Source.Credentials)
	assert.Empty(t, req.HostHeader())
}

func TestParseMissingMandatoryKeys(t *testing.T) {
	tests := []struct {
		key  string
		body string
	}{
		{
			key: "source.url",
			body: `{"source": {"headers": {}},
				"destination": {"host": "d", "path": "/p", "credentials": "c"},
				"outcome": {"pulsar-topic": "t"}}`,
		},
		{
			key: "source.headers",
			body: `{"source": {"url": "https://s/f"},
				"destination": {"host": "d", "path": "/p", "credentials": "c"},
				"outcome": {"pulsar-topic": "t"}}`,
		},
		{
			key: "destination.host",
			body: `{"source": {"url": "https://s/f", "headers": {}},
				"destination": {"path": "/p", "credentials": "c"},
				"outcome": {"pulsar-topic": "t"}}`,
		},
		{
			key: "destination.path",
			body: `{"source": {"url": "https://s/f", "headers": {}},
				"destination": {"host": "d", "credentials": "c"},
				"outcome": {"pulsar-topic": "t"}}`,
		},
		{
			key: "destination.credentials",
			body: `{"source": {"url": "https://s/f", "headers": {}},
				"destination": {"host": "d", "path": "/p"},
				"outcome": {"pulsar-topic": "t"}}`,
		},
		{
			key: "outcome.pulsar-topic",
			body: `{"source": {"url": "https://s/f", "headers": {}},
				"destination": {"host": "d", "path": "/p", "credentials": "c"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := Parse([]byte(tt.body))
			var invalid *InvalidMessageError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, fmt.Sprintf("invalid transfer message: '%s' is a mandatory key", tt.key), err.Error())
		})
	}
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	var invalid *InvalidMessageError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "not valid JSON")
}
