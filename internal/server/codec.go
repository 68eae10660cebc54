package server

import (
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// codec encodes WebSocket frames. JSON frames travel as text and may be
// batched newline-separated into one WebSocket message; MessagePack frames
// travel as one binary message each.
type codec interface {
	name() string
	marshal(v interface{}) ([]byte, error)
	unmarshal(data []byte, v interface{}) error
	messageType() int
	batchable() bool
}

type jsonCodec struct{}

func (jsonCodec) name() string                               { return "json" }
func (jsonCodec) marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) messageType() int                           { return websocket.TextMessage }
func (jsonCodec) batchable() bool                            { return true }

type msgpackCodec struct{}

func (msgpackCodec) name() string                               { return "msgpack" }
func (msgpackCodec) marshal(v interface{}) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) unmarshal(data []byte, v interface{}) error { return msgpack.Unmarshal(data, v) }
func (msgpackCodec) messageType() int                           { return websocket.BinaryMessage }
func (msgpackCodec) batchable() bool                            { return false }

// codecFor resolves the ?encoding= query value. Empty selects JSON.
func codecFor(encoding string) (codec, bool) {
	switch encoding {
	case "", "json":
		return jsonCodec{}, true
	case "msgpack":
		return msgpackCodec{}, true
	default:
		return nil, false
	}
}
