// Package transport accepts the producer websocket, decodes its framed
// protocol, and routes frames into the hub.
package transport

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/chalk-box/app/hub"
	"github.com/chalk-box/app/internal/config"
)

// ErrProtocol marks an undecodable frame. The frame is dropped; the
// connection stays up.
var ErrProtocol = errors.New("protocol error")

var zipMagic = []byte("PK\x03\x04")

// TextEnvelope is a decoded text frame. Fields holds the complete payload;
// the routing fields are lifted out for dispatch.
type TextEnvelope struct {
	Type      string
	Version   string
	UpdateKey string
	Fields    map[string]any
}

// DecodeTextFrame parses a JSON text frame into its envelope.
func DecodeTextFrame(data []byte) (TextEnvelope, error) {
	fields := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return TextEnvelope{}, fmt.Errorf("%w: invalid JSON: %v", ErrProtocol, err)
	}
	env := TextEnvelope{Fields: fields}
	if v, ok := fields["type"].(string); ok {
		env.Type = v
	}
	if v, ok := fields["version"].(string); ok {
		env.Version = v
	}
	if v, ok := fields["updateKey"].(string); ok {
		env.UpdateKey = v
	}
	if env.Type == "" {
		return TextEnvelope{}, fmt.Errorf("%w: text frame without type", ErrProtocol)
	}
	return env, nil
}

// BinaryFrame is a decoded binary frame. Version is empty for the legacy and
// headerless layouts.
type BinaryFrame struct {
	Version string
	Type    string
	Payload []byte
}

// DecodeBinaryFrame parses the three accepted binary layouts:
//
//	versioned:  [u32 n][semver, n<=20 bytes][u32 m][type, m bytes][payload]
//	legacy:     [u32 m][type, m bytes][payload]
//	headerless: raw ZIP starting with the PK magic, treated as flags_zip
//
// The layouts are distinguished by the leading length: an implausibly large
// value over a ZIP magic means headerless, a short prefix that parses as a
// semver means versioned, anything else is legacy.
func DecodeBinaryFrame(data []byte) (BinaryFrame, error) {
	if bytes.HasPrefix(data, zipMagic) {
		return BinaryFrame{Type: "flags_zip", Payload: data}, nil
	}
	if len(data) < 4 {
		return BinaryFrame{}, fmt.Errorf("%w: binary frame too short (%d bytes)", ErrProtocol, len(data))
	}

	length := binary.BigEndian.Uint32(data[:4])
	if length == 0 {
		return BinaryFrame{}, fmt.Errorf("%w: zero-length header field", ErrProtocol)
	}
	if length > config.BinaryHeaderMaxLength {
		return BinaryFrame{}, fmt.Errorf("%w: implausible header length %d", ErrProtocol, length)
	}

	frame := BinaryFrame{}
	rest := data[4:]
	if uint32(len(rest)) < length {
		return BinaryFrame{}, fmt.Errorf("%w: truncated header field", ErrProtocol)
	}
	first := rest[:length]
	rest = rest[length:]

	if length <= config.BinaryVersionMaxLength && utf8.Valid(first) {
		if hub.CheckProtocolVersion(string(first)) == nil || looksLikeVersion(string(first)) {
			// Versioned layout: a type field follows.
			frame.Version = string(first)
			typeField, remainder, err := readLengthPrefixed(rest)
			if err != nil {
				return BinaryFrame{}, err
			}
			frame.Type = typeField
			frame.Payload = remainder
			return frame, nil
		}
	}

	if !utf8.Valid(first) {
		return BinaryFrame{}, fmt.Errorf("%w: type field is not valid UTF-8", ErrProtocol)
	}
	frame.Type = string(first)
	frame.Payload = rest
	return frame, nil
}

func readLengthPrefixed(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("%w: truncated type field", ErrProtocol)
	}
	length := binary.BigEndian.Uint32(data[:4])
	if length == 0 {
		return "", nil, fmt.Errorf("%w: zero-length type field", ErrProtocol)
	}
	rest := data[4:]
	if uint32(len(rest)) < length {
		return "", nil, fmt.Errorf("%w: truncated type field", ErrProtocol)
	}
	field := rest[:length]
	if !utf8.Valid(field) {
		return "", nil, fmt.Errorf("%w: type field is not valid UTF-8", ErrProtocol)
	}
	return string(field), rest[length:], nil
}

// looksLikeVersion is a cheap shape test so pre-release or build-suffixed
// versions still select the versioned layout even if semver parsing balks.
func looksLikeVersion(s string) bool {
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
		case r == '-' || r == '+':
			return dots >= 1
		default:
			return false
		}
	}
	return dots >= 1 && s[0] >= '0' && s[0] <= '9'
}
