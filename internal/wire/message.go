package wire

import (
	"bytes"
	"encoding/base64"

	"vblock/internal/errors"
	"vblock/pkg/exception"
)

// Delimiter separates the parts of a message. No part may contain it.
const Delimiter byte = '*'

// MessageType is the single-character tag leading every message.
type MessageType byte

const (
	TypeCreate       MessageType = '1'
	TypeCall         MessageType = '2'
	TypeDestroy      MessageType = '3'
	TypeFailure      MessageType = '4'
	TypeSuccess      MessageType = '5'
	TypeSuccessTyped MessageType = '6'
)

func (t MessageType) IsValid() bool {
	return t >= TypeCreate && t <= TypeSuccessTyped
}

func (t MessageType) String() string {
	switch t {
	case TypeCreate:
		return "CREATE"
	case TypeCall:
		return "CALL"
	case TypeDestroy:
		return "DESTROY"
	case TypeFailure:
		return "FAILURE"
	case TypeSuccess:
		return "SUCCESS"
	case TypeSuccessTyped:
		return "SUCCESS_TYPED"
	default:
		return "UNKNOWN"
	}
}

// payloadEncoding keeps binary sub-payloads clear of the delimiter.
var payloadEncoding = base64.RawStdEncoding

// Message is one request or reply.
//
//	CREATE         1[*args]
//	CALL           2*handle*method[*args]
//	DESTROY        3*handle
//	FAILURE        4[*detail]
//	SUCCESS        5[*result]
//	SUCCESS_TYPED  6*record
//
// Payload holds the raw sub-payload (argument list or result envelope) before base64.
type Message struct {
	Type    MessageType
	Handle  string
	Method  string
	Payload []byte
}

// Join joins parts with the delimiter and strips the trailing delimiter.
// A part containing the delimiter is rejected before anything is written.
func Join(parts ...[]byte) ([]byte, error) {
	for i, p := range parts {
		if bytes.IndexByte(p, Delimiter) >= 0 {
			return nil, errors.Wrapf(exception.ErrDelimiter, "part %d", i)
		}
	}
	joined := bytes.Join(parts, []byte{Delimiter})
	return bytes.TrimRight(joined, string(Delimiter)), nil
}

// Split is the inverse of Join.
func Split(b []byte) [][]byte {
	return bytes.Split(b, []byte{Delimiter})
}

// Encode validates and frames the message.
func (m Message) Encode() ([]byte, error) {
	if !m.Type.IsValid() {
		return nil, exception.ErrUnknownMessageType
	}

	parts := make([][]byte, 0, 4)
	parts = append(parts, []byte{byte(m.Type)})
	switch m.Type {
	case TypeCall:
		if m.Handle == "" || m.Method == "" {
			return nil, errors.Wrap(exception.ErrMalformedMessage, "call needs handle and method")
		}
		parts = append(parts, []byte(m.Handle), []byte(m.Method))
	case TypeDestroy:
		if m.Handle == "" {
			return nil, errors.Wrap(exception.ErrMalformedMessage, "destroy needs handle")
		}
		parts = append(parts, []byte(m.Handle))
	case TypeSuccessTyped:
		if len(m.Payload) == 0 {
			return nil, errors.Wrap(exception.ErrMalformedMessage, "typed success needs a record")
		}
	}

	if len(m.Payload) != 0 && m.Type != TypeDestroy {
		enc := make([]byte, payloadEncoding.EncodedLen(len(m.Payload)))
		payloadEncoding.Encode(enc, m.Payload)
		parts = append(parts, enc)
	}

	return Join(parts...)
}

// DecodeMessage parses a reassembled message.
func DecodeMessage(b []byte) (Message, error) {
	parts := Split(b)
	if len(parts[0]) != 1 {
		return Message{}, errors.Wrap(exception.ErrMalformedMessage, "missing type tag")
	}

	m := Message{Type: MessageType(parts[0][0])}
	if !m.Type.IsValid() {
		return Message{}, errors.Wrapf(exception.ErrUnknownMessageType, "tag %q", parts[0][0])
	}

	var payload []byte
	switch m.Type {
	case TypeCreate, TypeSuccess, TypeFailure:
		if len(parts) > 2 {
			return Message{}, errors.Wrapf(exception.ErrMalformedMessage, "%s with %d parts", m.Type, len(parts))
		}
		if len(parts) == 2 {
			payload = parts[1]
		}
	case TypeCall:
		if len(parts) < 3 || len(parts) > 4 {
			return Message{}, errors.Wrapf(exception.ErrMalformedMessage, "%s with %d parts", m.Type, len(parts))
		}
		m.Handle, m.Method = string(parts[1]), string(parts[2])
		if m.Handle == "" || m.Method == "" {
			return Message{}, errors.Wrap(exception.ErrMalformedMessage, "empty handle or method")
		}
		if len(parts) == 4 {
			payload = parts[3]
		}
	case TypeDestroy:
		if len(parts) != 2 || len(parts[1]) == 0 {
			return Message{}, errors.Wrapf(exception.ErrMalformedMessage, "%s with %d parts", m.Type, len(parts))
		}
		m.Handle = string(parts[1])
	case TypeSuccessTyped:
		if len(parts) != 2 {
			return Message{}, errors.Wrapf(exception.ErrMalformedMessage, "%s with %d parts", m.Type, len(parts))
		}
		payload = parts[1]
	}

	if len(payload) != 0 {
		dec := make([]byte, payloadEncoding.DecodedLen(len(payload)))
		n, err := payloadEncoding.Decode(dec, payload)
		if err != nil {
			return Message{}, errors.Wrap(exception.ErrMalformedMessage, "payload is not base64")
		}
		m.Payload = dec[:n]
	}

	return m, nil
}
