package transport

// ClientFrame is one multiplexed request: the ROUTER-style identity
// envelope carried as Route, an opaque JSON Payload, and a Signature
// over that payload. It substitutes for the original ZeroMQ multipart
// message.
type ClientFrame struct {
	Route     []string `json:"route"`
	Token     string   `json:"token,omitempty"`
	Payload   []byte   `json:"payload"`
	Signature []byte   `json:"signature,omitempty"`
}

// Event is a published telemetry frame: an envelope string
// ("<driver> <field> <seconds.mmm>") and an opaque blob, mirroring the
// PUB socket's topic-prefixed messages.
type Event struct {
	Envelope string `json:"envelope"`
	Blob     []byte `json:"blob"`
}

// SubscribeRequest asks the Subscribe stream to filter published
// events to those whose envelope starts with Prefix.
type SubscribeRequest struct {
	Prefix string `json:"prefix"`
}
