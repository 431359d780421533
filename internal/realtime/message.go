package realtime

import (
	"encoding/json"
)

const (
	OperationInfo       = "info"
	OperationGetBalance = "getbalance"

	statusSessionExpired = "401 Session Expired"
)

// Message is one parsed inbound frame. Raw keeps the original bytes so it can
// be relayed untouched into an embedded runtime.
type Message struct {
	Operation string          `json:"operation,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

func parseMessage(raw []byte) (Message, bool) {
	if !json.Valid(raw) {
		return Message{}, false
	}
	var msg Message
	// Non-object payloads are still delivered, just without envelope fields.
	_ = json.Unmarshal(raw, &msg)
	msg.Raw = append(json.RawMessage(nil), raw...)
	return msg, true
}

type dataEnvelope struct {
	Status  string   `json:"status"`
	Balance *float64 `json:"balance"`
}

func (m Message) envelope() dataEnvelope {
	var env dataEnvelope
	if len(m.Data) > 0 {
		_ = json.Unmarshal(m.Data, &env)
	}
	return env
}

// Status returns data.status, or "" when absent.
func (m Message) Status() string {
	return m.envelope().Status
}

// Balance returns data.balance when the frame carries one.
func (m Message) Balance() (float64, bool) {
	env := m.envelope()
	if env.Balance == nil {
		return 0, false
	}
	return *env.Balance, true
}

func (m Message) sessionExpired() bool {
	return m.Status() == statusSessionExpired
}
