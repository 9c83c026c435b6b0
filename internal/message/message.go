// Package message parses and validates incoming transfer requests.
// Validation happens before any transfer machinery is touched: a
// request missing a mandatory key never reaches the core.
package message

import (
	"encoding/json"
	"fmt"
)

// InvalidMessageError reports a request that cannot be acted on, either
// because it is not JSON or because a mandatory key is absent.
type InvalidMessageError struct {
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return "invalid transfer message: " + e.Reason
}

// TransferRequest is the parsed form of an inbound message.
type TransferRequest struct {
	Source struct {
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
		// Credentials is an optional secret reference. Empty means the
		// source is fetched anonymously.
		Credentials string `json:"credentials"`
	} `json:"source"`
	Destination struct {
		Host        string `json:"host"`
		Path        string `json:"path"`
		Credentials string `json:"credentials"`
	} `json:"destination"`
	Outcome struct {
		PulsarTopic string `json:"pulsar-topic"`
	} `json:"outcome"`
}

// HostHeader returns the optional host override header for the source.
func (r *TransferRequest) HostHeader() string {
	return r.Source.Headers["host"]
}

// Parse decodes body and checks all mandatory keys.
func Parse(body []byte) (*TransferRequest, error) {
	var req TransferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &InvalidMessageError{Reason: fmt.Sprintf("not valid JSON: %q", err)}
	}
	if err := validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func validate(req *TransferRequest) error {
	checks := []struct {
		key string
		ok  bool
	}{
		{"source.url", req.Source.URL != ""},
		{"source.headers", req.Source.Headers != nil},
		{"destination.host", req.Destination.Host != ""},
		{"destination.path", req.Destination.Path != ""},
		{"destination.credentials", req.Destination.Credentials != ""},
		{"outcome.pulsar-topic", req.Outcome.PulsarTopic != ""},
	}
	for _, check := range checks {
		if !check.ok {
			return &InvalidMessageError{Reason: fmt.Sprintf("'%s' is a mandatory key", check.key)}
		}
	}
	return nil
}
