package changefeed

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/gzip"
	nats "github.com/nats-io/nats.go"
	"github.com/shopmonkeyus/go-common/compress"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodingHeader names the message header carrying the encoding.
const EncodingHeader = "content-encoding"

// Encoding is the wire format of an event.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingGzip    Encoding = "gzip/json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding returns the encoding for a name. The empty name is json.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingGzip, "gzip":
		return EncodingGzip, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	}
	return "", fmt.Errorf("unsupported encoding: %s", name)
}

// Encode serializes the event.
func Encode(event *ChangeEvent, encoding Encoding) ([]byte, error) {
	switch encoding {
	case EncodingMsgpack:
		return msgpack.Marshal(event)
	case EncodingGzip:
		buf, err := json.Marshal(event)
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		w := gzip.NewWriter(&out)
		if _, err := w.Write(buf); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}
	return json.Marshal(event)
}

// Decode decodes data of the given encoding into v.
func Decode(data []byte, encoding string, v any) error {
	var err error
	switch Encoding(encoding) {
	case EncodingGzip:
		data, err = compress.Gunzip(data)
	case EncodingMsgpack:
		var o any
		err = msgpack.Unmarshal(data, &o)
		if err == nil {
			data, err = json.Marshal(o)
		}
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// DecodeMsg decodes the change event carried by a nats message.
func DecodeMsg(msg *nats.Msg) (*ChangeEvent, error) {
	var event ChangeEvent
	if err := Decode(msg.Data, msg.Header.Get(EncodingHeader), &event); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", msg.Subject, err)
	}
	return &event, nil
}
