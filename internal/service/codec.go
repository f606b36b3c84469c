package service

import "encoding/json"

// jsonCodec carries plain Go request and response structs over Connect.
// It replaces Connect's default "json" codec, which only handles protobuf
// messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
