// Package events builds the outcome events published after a transfer
// ran, successfully or not.
package events

import (
	"encoding/json"

	"github.com/viaa/transfer-service/internal/message"
)

// Outcome is the final verdict of a transfer.
type Outcome string

const (
	OutcomeSuccess Outcome = "Success"
	OutcomeFail    Outcome = "Fail"
)

// Event is the payload published on the request's outcome topic.
type Event struct {
	Message     string  `json:"message"`
	Outcome     Outcome `json:"outcome"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	Host        string  `json:"host"`
}

// New builds the outcome event for a transfer request.
func New(req *message.TransferRequest, msg string, outcome Outcome) Event {
	return Event{
		Message:     msg,
		Outcome:     outcome,
		Source:      req.Source.URL,
		Destination: req.Destination.Path,
		Host:        req.Destination.Host,
	}
}

// Marshal serializes the event for publishing.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
