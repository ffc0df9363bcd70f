package broker

import (
	"encoding/json"
	"fmt"
)

// jsonCodec is a gRPC message codec that frames requests and responses as
// JSON instead of binary protobuf. The structpb value types marshal to their
// canonical JSON form, so the generic payloads survive the trip unchanged.
type jsonCodec struct{}

// Name identifies the codec in the gRPC content-subtype negotiation.
func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: unmarshal into %T: %w", v, err)
	}
	return nil
}
