package wopi_test

import (
	"testing"
	"time"

	"github.com/CollaboraOnline/online-sub004/wopi"
)

func TestSignatureIsByteIdenticalForFixedInputs(t *testing.T) {
	key, err := wopi.GenerateProofKey()
	if err != nil {
		t.Fatalf("GenerateProofKey: %v", err)
	}

	ticks := wopi.TicksFromUnix(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	sig1, err := key.Sign("tok-abc", "https://host/wopi/files/1", ticks)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := key.Sign("tok-abc", "https://host/wopi/files/1", ticks)
	if err != nil {
		t.Fatalf("Sign (again): %v", err)
	}

	if sig1 != sig2 {
		t.Fatalf("PKCS#1v1.5 signatures must be deterministic for identical inputs: %q != %q", sig1, sig2)
	}
}

func TestVerifyAcceptsASignatureProducedBySign(t *testing.T) {
	key, err := wopi.GenerateProofKey()
	if err != nil {
		t.Fatalf("GenerateProofKey: %v", err)
	}
	ticks := wopi.TicksFromUnix(time.Now())

	sig, err := key.Sign("tok", "https://host/wopi/files/1", ticks)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := wopi.Verify(key.PublicKey(), "tok", "https://host/wopi/files/1", ticks, sig); err != nil {
		t.Fatalf("Verify rejected a signature Sign produced: %v", err)
	}

	pubVal, err := key.PublicKeyValue()
	if err != nil {
		t.Fatalf("PublicKeyValue: %v", err)
	}
	if pubVal == "" {
		t.Fatal("expected non-empty public key value")
	}
}

func TestTicksFromUnixKnownEpoch(t *testing.T) {
	// 1970-01-01T00:00:00Z is epochTicks ticks after year one.
	got := wopi.TicksFromUnix(time.Unix(0, 0).UTC())
	want := int64(621355968000000000)
	if got != want {
		t.Fatalf("TicksFromUnix(epoch) = %d, want %d", got, want)
	}
}
