/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package wsframe implements RFC 6455 framing on top of a raw stream
// socket: encode/decode, ping/pong liveness, and the close handshake. It is
// deliberately independent of any particular HTTP library so it can sit
// directly on a socket.Socket inside the cooperative poll loop.
package wsframe

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Opcode identifies a frame's payload interpretation.
type Opcode uint8

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%x)", uint8(o))
	}
}

// Close status codes this implementation produces or recognises.
const (
	CloseNormal        = 1000
	CloseGoingAway     = 1001
	CloseProtocolError = 1002
	CloseUnsupported   = 1003
	CloseTooLarge      = 1009
	CloseInternalError = 1011
)

// MaxFramePayload bounds a single frame's payload length; frames claiming a
// larger length are rejected with ErrProtocol (Conn answers with
// CloseProtocolError), not an allocation hazard.
const MaxFramePayload = 1 << 27 // 128 MiB; comfortably above any one tile or command frame.

// Frame is one decoded WebSocket frame.
type Frame struct {
	Opcode  Opcode
	Fin     bool
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// ErrProtocol wraps every framing violation the decoder detects: reserved
// bits set, an oversized length, or a fragmented or oversized control
// frame. A truncated buffer is not an error: Decode consumes nothing. Callers
// respond by sending CloseProtocolError and tearing the connection down.
var ErrProtocol = errors.New("wsframe: protocol error")

// Encode serialises f per RFC 6455 section 5.2. Outbound server frames are
// never masked, matching the asymmetric masking rule the protocol requires.
func Encode(opcode Opcode, fin bool, payload []byte) []byte {
	var b []byte
	first := byte(opcode) & 0x0F
	if fin {
		first |= 0x80
	}
	b = append(b, first)

	n := len(payload)
	switch {
	case n <= 125:
		b = append(b, byte(n))
	case n <= 0xFFFF:
		b = append(b, 126)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(n))
		b = append(b, l[:]...)
	default:
		b = append(b, 127)
		var l [8]byte
		binary.BigEndian.PutUint64(l[:], uint64(n))
		b = append(b, l[:]...)
	}
	return append(b, payload...)
}

// Decode consumes exactly one frame from buf, returning the frame, the
// number of bytes consumed, and ErrProtocol if buf's prefix is malformed.
// If buf does not yet contain a complete frame, consumed is 0 and err is
// nil - the caller should buffer more bytes and retry.
func Decode(buf []byte) (frame Frame, consumed int, err error) {
	if len(buf) < 2 {
		return Frame{}, 0, nil
	}

	b0, b1 := buf[0], buf[1]
	if b0&0x70 != 0 {
		return Frame{}, 0, fmt.Errorf("%w: reserved bits set", ErrProtocol)
	}

	fin := b0&0x80 != 0
	opcode := Opcode(b0 & 0x0F)
	masked := b1&0x80 != 0
	lenField := int(b1 & 0x7F)

	off := 2
	var payloadLen uint64
	switch lenField {
	case 126:
		if len(buf) < off+2 {
			return Frame{}, 0, nil
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf[off:]))
		off += 2
	case 127:
		if len(buf) < off+8 {
			return Frame{}, 0, nil
		}
		payloadLen = binary.BigEndian.Uint64(buf[off:])
		off += 8
	default:
		payloadLen = uint64(lenField)
	}

	if payloadLen > MaxFramePayload {
		return Frame{}, 0, fmt.Errorf("%w: frame of %d bytes exceeds cap", ErrProtocol, payloadLen)
	}
	isControl := opcode == OpClose || opcode == OpPing || opcode == OpPong
	if isControl && (payloadLen > 125 || !fin) {
		return Frame{}, 0, fmt.Errorf("%w: fragmented or oversized control frame", ErrProtocol)
	}

	var maskKey [4]byte
	if masked {
		if len(buf) < off+4 {
			return Frame{}, 0, nil
		}
		copy(maskKey[:], buf[off:off+4])
		off += 4
	}

	total := off + int(payloadLen)
	if len(buf) < total {
		return Frame{}, 0, nil
	}

	payload := make([]byte, payloadLen)
	copy(payload, buf[off:total])
	if masked {
		unmask(payload, maskKey)
	}

	return Frame{Opcode: opcode, Fin: fin, Masked: masked, MaskKey: maskKey, Payload: payload}, total, nil
}

func unmask(payload []byte, key [4]byte) {
	for i := range payload {
		payload[i] ^= key[i%4]
	}
}

// EncodeMasked is the client-side counterpart of Encode, used only by test
// harnesses that simulate a browser: it applies the mandatory masking a
// real browser's WebSocket implementation performs.
func EncodeMasked(opcode Opcode, fin bool, payload []byte, key [4]byte) []byte {
	masked := make([]byte, len(payload))
	copy(masked, payload)
	unmask(masked, key) // XOR is its own inverse

	var b []byte
	first := byte(opcode) & 0x0F
	if fin {
		first |= 0x80
	}
	b = append(b, first)

	n := len(masked)
	switch {
	case n <= 125:
		b = append(b, 0x80|byte(n))
	case n <= 0xFFFF:
		b = append(b, 0x80|126)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(n))
		b = append(b, l[:]...)
	default:
		b = append(b, 0x80|127)
		var l [8]byte
		binary.BigEndian.PutUint64(l[:], uint64(n))
		b = append(b, l[:]...)
	}
	b = append(b, key[:]...)
	return append(b, masked...)
}
