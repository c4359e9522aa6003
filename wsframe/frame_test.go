package wsframe_test

import (
	"bytes"
	"testing"

	"github.com/CollaboraOnline/online-sub004/wsframe"
)

func TestFrameRoundTripBitIdentical(t *testing.T) {
	payloads := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("a"), 125),
		bytes.Repeat([]byte("b"), 126),
		bytes.Repeat([]byte("c"), 70000),
	}

	for _, p := range payloads {
		key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
		wire := wsframe.EncodeMasked(wsframe.OpBinary, true, p, key)

		frame, consumed, err := wsframe.Decode(wire)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if consumed != len(wire) {
			t.Fatalf("consumed %d, want %d", consumed, len(wire))
		}
		if !bytes.Equal(frame.Payload, p) {
			t.Fatalf("payload mismatch: got %v want %v", frame.Payload, p)
		}
		if frame.Opcode != wsframe.OpBinary || !frame.Fin {
			t.Fatalf("unexpected frame metadata: %+v", frame)
		}
	}
}

func TestDecodeIncompleteFrameReturnsZeroConsumed(t *testing.T) {
	wire := wsframe.Encode(wsframe.OpText, true, []byte("hello world"))
	frame, consumed, err := wsframe.Decode(wire[:3])
	if err != nil {
		t.Fatalf("Decode partial: %v", err)
	}
	if consumed != 0 {
		t.Fatalf("consumed = %d, want 0 for a truncated frame", consumed)
	}
	if frame.Opcode != 0 {
		t.Fatalf("expected zero-value frame for an incomplete read")
	}
}

func TestDecodeRejectsReservedBits(t *testing.T) {
	wire := wsframe.Encode(wsframe.OpText, true, []byte("hi"))
	wire[0] |= 0x40 // set RSV1

	_, _, err := wsframe.Decode(wire)
	if err == nil {
		t.Fatal("expected ErrProtocol for a frame with a reserved bit set")
	}
}

func TestDecodeRejectsFragmentedControlFrame(t *testing.T) {
	wire := wsframe.Encode(wsframe.OpPing, false, []byte("hi"))
	_, _, err := wsframe.Decode(wire)
	if err == nil {
		t.Fatal("expected ErrProtocol for a non-final control frame")
	}
}

func TestAcceptMatchesRFC6455Example(t *testing.T) {
	// The worked example from RFC 6455 section 1.3.
	got := wsframe.Accept("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Fatalf("Accept() = %q, want %q", got, want)
	}
}
