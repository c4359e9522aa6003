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

package wopi

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	libcrypt "github.com/CollaboraOnline/online-sub004/crypt"
)

// SaveProofKeyEncrypted PKCS#8-encodes k's private key, AES-256-GCM-seals it
// under sealKey/sealNonce, and writes the ciphertext to path. The Gateway
// uses this to persist the proof key across restarts without leaving the
// PEM readable on disk next to the jail roots.
func SaveProofKeyEncrypted(k *ProofKey, path string, sealKey [32]byte, sealNonce [12]byte) error {
	der, err := x509.MarshalPKCS8PrivateKey(k.private)
	if err != nil {
		return fmt.Errorf("wopi: marshaling proof key: %w", err)
	}
	clear := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	c, err := libcrypt.New(sealKey, sealNonce)
	if err != nil {
		return fmt.Errorf("wopi: building seal cipher: %w", err)
	}

	if err := os.WriteFile(path, c.EncodeHex(clear), 0o600); err != nil {
		return fmt.Errorf("wopi: writing sealed proof key: %w", err)
	}
	return nil
}

// LoadProofKeyEncrypted reverses SaveProofKeyEncrypted.
func LoadProofKeyEncrypted(path string, sealKey [32]byte, sealNonce [12]byte) (*ProofKey, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wopi: reading sealed proof key: %w", err)
	}

	c, err := libcrypt.New(sealKey, sealNonce)
	if err != nil {
		return nil, fmt.Errorf("wopi: building seal cipher: %w", err)
	}

	clear, err := c.DecodeHex(sealed)
	if err != nil {
		return nil, fmt.Errorf("wopi: unsealing proof key: %w", err)
	}

	return LoadProofKeyPEM(clear)
}
