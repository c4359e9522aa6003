package wopi

import (
	"path/filepath"
	"testing"

	libcrypt "github.com/CollaboraOnline/online-sub004/crypt"
)

func TestSaveProofKeyEncryptedThenLoadRoundTrips(t *testing.T) {
	key, err := libcrypt.GenKey()
	if err != nil {
		t.Fatalf("GenKey: %v", err)
	}
	nonce, err := libcrypt.GenNonce()
	if err != nil {
		t.Fatalf("GenNonce: %v", err)
	}

	original, err := GenerateProofKey()
	if err != nil {
		t.Fatalf("GenerateProofKey: %v", err)
	}

	path := filepath.Join(t.TempDir(), "proof.key.enc")
	if err := SaveProofKeyEncrypted(original, path, key, nonce); err != nil {
		t.Fatalf("SaveProofKeyEncrypted: %v", err)
	}

	loaded, err := LoadProofKeyEncrypted(path, key, nonce)
	if err != nil {
		t.Fatalf("LoadProofKeyEncrypted: %v", err)
	}

	sig, err := original.Sign("token", "https://example.test/wopi/files/1", 12345)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(loaded.PublicKey(), "token", "https://example.test/wopi/files/1", 12345, sig); err != nil {
		t.Fatalf("Verify with round-tripped key: %v", err)
	}
}

func TestLoadProofKeyEncryptedFailsUnderWrongSeal(t *testing.T) {
	key, _ := libcrypt.GenKey()
	nonce, _ := libcrypt.GenNonce()

	original, err := GenerateProofKey()
	if err != nil {
		t.Fatalf("GenerateProofKey: %v", err)
	}

	path := filepath.Join(t.TempDir(), "proof.key.enc")
	if err := SaveProofKeyEncrypted(original, path, key, nonce); err != nil {
		t.Fatalf("SaveProofKeyEncrypted: %v", err)
	}

	wrongKey, _ := libcrypt.GenKey()
	if _, err := LoadProofKeyEncrypted(path, wrongKey, nonce); err == nil {
		t.Fatal("expected an error when unsealing under the wrong key")
	}
}
