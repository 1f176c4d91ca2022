package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the gRPC content-subtype of the pipeline messages.
const Name = "json"

// codec marshals the plain Go messages of the api package as JSON.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(codec{})
}

// Size returns the encoded size of a message, as sent on the wire.
func Size(v any) int {
	b, err := codec{}.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}
