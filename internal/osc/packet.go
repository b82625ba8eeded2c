// Package osc encodes and decodes the minimal OSC-style packets exchanged
// with the controller: an address, a ",s" type tag and one string argument.
package osc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

const (
	// JSONAddress is the address used for JSON payloads sent to the controller.
	JSONAddress = "/json"

	stringTypeTag = ",s"
	alignment     = 4
)

// ErrMalformedPacket is returned by Decode for anything that is not a
// well-formed single-string packet.
var ErrMalformedPacket = errors.New("osc: malformed packet")

// Packet is one decoded datagram.
type Packet struct {
	Address  string
	TypeTag  string
	Argument string
}

// Encode builds a packet carrying a single string argument.
// A leading "/" is added to the address when missing.
func Encode(address, argument string) []byte {
	if !strings.HasPrefix(address, "/") {
		address = "/" + address
	}

	buf := make([]byte, 0, paddedLen(len(address))+paddedLen(len(stringTypeTag))+paddedLen(len(argument)))
	buf = appendPadded(buf, address)
	buf = appendPadded(buf, stringTypeTag)
	buf = appendPadded(buf, argument)
	return buf
}

// Decode parses a packet produced by Encode.
func Decode(b []byte) (Packet, error) {
	address, off, err := readPadded(b, 0)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: address: %v", ErrMalformedPacket, err)
	}
	if !strings.HasPrefix(address, "/") {
		return Packet{}, fmt.Errorf("%w: address %q does not start with /", ErrMalformedPacket, address)
	}

	tag, off, err := readPadded(b, off)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: type tag: %v", ErrMalformedPacket, err)
	}
	if tag != stringTypeTag {
		return Packet{}, fmt.Errorf("%w: unsupported type tag %q", ErrMalformedPacket, tag)
	}

	arg, off, err := readPadded(b, off)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: argument: %v", ErrMalformedPacket, err)
	}
	if off != len(b) {
		return Packet{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedPacket, len(b)-off)
	}

	return Packet{Address: address, TypeTag: tag, Argument: arg}, nil
}

// LooksLikePacket reports whether b plausibly starts with an OSC address.
// Raw JSON bodies start with "{" or whitespace, never "/".
func LooksLikePacket(b []byte) bool {
	return len(b) >= alignment && b[0] == '/'
}

// paddedLen is the encoded size of a string of length n including its NUL terminator.
func paddedLen(n int) int {
	n++
	return (n + alignment - 1) / alignment * alignment
}

func appendPadded(buf []byte, s string) []byte {
	buf = append(buf, s...)
	for i := len(s); i < paddedLen(len(s)); i++ {
		buf = append(buf, 0)
	}
	return buf
}

func readPadded(b []byte, off int) (string, int, error) {
	if off >= len(b) {
		return "", off, errors.New("unexpected end of packet")
	}
	end := bytes.IndexByte(b[off:], 0)
	if end < 0 {
		return "", off, errors.New("missing NUL terminator")
	}
	s := string(b[off : off+end])
	next := off + paddedLen(end)
	if next > len(b) {
		return "", off, errors.New("truncated padding")
	}
	for _, c := range b[off+end : next] {
		if c != 0 {
			return "", off, errors.New("non-zero padding byte")
		}
	}
	return s, next, nil
}
