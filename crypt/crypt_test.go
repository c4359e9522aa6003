package crypt

import (
	"bytes"
	"encoding/hex"
	"io"
	"testing"
)

func TestEncodeThenDecodeRoundTrips(t *testing.T) {
	key, err := GenKey()
	if err != nil {
		t.Fatalf("GenKey: %v", err)
	}
	nonce, err := GenNonce()
	if err != nil {
		t.Fatalf("GenNonce: %v", err)
	}

	c, err := New(key, nonce)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plain := []byte("the quick brown fox jumps over the lazy dog")
	enc := c.Encode(plain)
	if bytes.Equal(enc, plain) {
		t.Fatal("Encode did not change the plaintext")
	}

	dec, err := c.Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("Decode = %q, want %q", dec, plain)
	}
}

func TestEncodeHexThenDecodeHexRoundTrips(t *testing.T) {
	key, _ := GenKey()
	nonce, _ := GenNonce()
	c, err := New(key, nonce)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plain := []byte("hex round trip")
	enc := c.EncodeHex(plain)

	dec, err := c.DecodeHex(enc)
	if err != nil {
		t.Fatalf("DecodeHex: %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("DecodeHex = %q, want %q", dec, plain)
	}
}

func TestDecodeWithWrongKeyFails(t *testing.T) {
	key, _ := GenKey()
	nonce, _ := GenNonce()
	c, _ := New(key, nonce)
	enc := c.Encode([]byte("secret"))

	otherKey, _ := GenKey()
	other, _ := New(otherKey, nonce)
	if _, err := other.Decode(enc); err == nil {
		t.Fatal("expected Decode to fail under the wrong key")
	}
}

func TestReaderDecryptsWhatWriterEncrypted(t *testing.T) {
	key, _ := GenKey()
	nonce, _ := GenNonce()
	c, _ := New(key, nonce)

	var sealed bytes.Buffer
	w := c.Writer(&sealed)
	plain := []byte("streamed plaintext")
	if _, err := w.Write(plain); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r := c.Reader(bytes.NewReader(sealed.Bytes()))
	got, err := io.ReadAll(io.LimitReader(r, int64(len(plain))+16))
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip via Reader/Writer = %q, want %q", got, plain)
	}
}

func TestGetHexKeyAndGetHexNonceRoundTripGeneratedValues(t *testing.T) {
	key, _ := GenKey()
	nonce, _ := GenNonce()

	hexKey := hex.EncodeToString(key[:])
	hexNonce := hex.EncodeToString(nonce[:])

	gotKey, err := GetHexKey(hexKey)
	if err != nil {
		t.Fatalf("GetHexKey: %v", err)
	}
	if gotKey != key {
		t.Fatal("GetHexKey did not reproduce the original key")
	}

	gotNonce, err := GetHexNonce(hexNonce)
	if err != nil {
		t.Fatalf("GetHexNonce: %v", err)
	}
	if gotNonce != nonce {
		t.Fatal("GetHexNonce did not reproduce the original nonce")
	}
}
