package loader

import "encoding/json"

// jsonCodec is a minimal grpc encoding.Codec so the shard:// backend can
// invoke a sharded store's RPCs without a generated protobuf stub: request
// and response payloads are encoded as JSON rather than protobuf wire
// format. Registered once under the "json" subtype name.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }
