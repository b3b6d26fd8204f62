package stream

// Event is one framed unit pushed to the client. Type is always set; the
// other fields depend on it: content frames carry Chunk and ChunkID, the
// done frame carries TotalChunks, the error frame carries Message.
type Event struct {
	Type        string `json:"type"`
	Chunk       string `json:"chunk,omitempty"`
	ChunkID     int    `json:"chunk_id,omitempty"`
	TotalChunks int    `json:"total_chunks"`
	Message     string `json:"message,omitempty"`
}

// Frame types, in the order one generation emits them: start once, any
// number of content frames, then exactly one of done or error. A cancelled
// session stops without a terminal frame.
const (
	TypeStart   = "start"
	TypeContent = "content"
	TypeDone    = "done"
	TypeError   = "error"
)

// Sink accepts the ordered event sequence of one generation. Send returns
// an error when the consumer is gone; the producer must stop emitting.
type Sink interface {
	Send(Event) error
}
