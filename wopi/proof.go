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

// Package wopi implements the client side of the storage protocol: file
// info retrieval, content upload/download, the lock lifecycle, and the
// X-WOPI-Proof signature every request must carry.
package wopi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"time"
)

// ticksPerSecond converts between Unix time and .NET-style "ticks since
// year one", the unit WOPI proof timestamps use.
const ticksPerSecond = 10_000_000

// epochTicks is the number of 100ns ticks between 0001-01-01 and the Unix
// epoch (1970-01-01), the fixed offset WOPI's proof protocol assumes.
const epochTicks = 621355968000000000

// TicksFromUnix converts a time.Time into the tick count the proof
// protocol signs.
func TicksFromUnix(t time.Time) int64 {
	return epochTicks + t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100
}

// ProofKey is the server's RSA key pair used to sign outgoing WOPI
// requests, and the source of the values a discovery <proof-key> element
// carries. The Gateway's /hosting/discovery document does not include a
// proof-key element.
type ProofKey struct {
	private *rsa.PrivateKey
}

// GenerateProofKey creates a fresh RSA-2048 proof key. Production
// deployments load a persisted key instead via LoadProofKeyPEM, so the
// key's modulus/exponent stay stable across restarts.
func GenerateProofKey() (*ProofKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("wopi: generating proof key: %w", err)
	}
	return &ProofKey{private: key}, nil
}

// LoadProofKeyPEM parses a PKCS#1 or PKCS#8 RSA private key in PEM form.
func LoadProofKeyPEM(pemBytes []byte) (*ProofKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("wopi: no PEM block found in proof key")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return &ProofKey{private: key}, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("wopi: parsing proof key: %w", err)
	}
	rsaKey, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("wopi: proof key is not RSA")
	}
	return &ProofKey{private: rsaKey}, nil
}

// PublicKey returns the RSA public key counterpart, for callers (tests)
// that need to verify a signature this key produced.
func (k *ProofKey) PublicKey() *rsa.PublicKey {
	return &k.private.PublicKey
}

// Modulus and Exponent return the public components in the form a
// <proof-key value=".." modulus=".." exponent=".."/> element carries.
func (k *ProofKey) Modulus() []byte {
	return k.private.PublicKey.N.Bytes()
}

func (k *ProofKey) Exponent() []byte {
	e := k.private.PublicKey.E
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(e))
	i := 0
	for i < 3 && b[i] == 0 {
		i++
	}
	return b[i:]
}

// PublicKeyValue returns the base64-encoded DER SubjectPublicKeyInfo, the
// form of a <proof-key value=".."/> attribute.
func (k *ProofKey) PublicKeyValue() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.private.PublicKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// lenPrefixed appends a big-endian uint32 length followed by the bytes of s
// to buf, the message-building convention every field in the proof blob
// uses.
func lenPrefixed(buf []byte, s []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(s)))
	buf = append(buf, l[:]...)
	return append(buf, s...)
}

// buildMessage assembles len32(access_token) | access_token | len32(uri) |
// uri | 8 | ticks, the exact byte layout the proof signature covers.
func buildMessage(accessToken, uri string, ticks int64) []byte {
	var buf []byte
	buf = lenPrefixed(buf, []byte(accessToken))
	buf = lenPrefixed(buf, []byte(uri))

	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], uint64(ticks))
	buf = lenPrefixed(buf, tb[:])
	return buf
}

// Sign produces the base64-encoded SHA-256/RSA signature for the
// X-WOPI-Proof header.
func (k *ProofKey) Sign(accessToken, uri string, ticks int64) (string, error) {
	msg := buildMessage(accessToken, uri, ticks)
	digest := sha256.Sum256(msg)

	sig, err := rsa.SignPKCS1v15(rand.Reader, k.private, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("wopi: signing proof: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64-encoded proof signature against the given public
// key, message inputs and tick count - used by tests and by any in-process
// reference check against a configured public key.
func Verify(pub *rsa.PublicKey, accessToken, uri string, ticks int64, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("wopi: decoding proof signature: %w", err)
	}
	msg := buildMessage(accessToken, uri, ticks)
	digest := sha256.Sum256(msg)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig)
}
