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

// Package admin carries the non-UI half of the administrative surface:
// the admin_console.secure_password hash scheme and the process/session
// metrics the Gateway exposes for monitoring. It never renders HTML; the
// console page itself is out of scope.
package admin

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 16
	keyLen     = 64
	iterations = 100_000
)

// HashPassword derives a PBKDF2-SHA512 hash of password with a fresh random
// salt and returns the encoded form config.Admin.SecurePassword stores:
// "pbkdf2-sha512$<iterations>$<salt-b64>$<hash-b64>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("admin: generating salt: %w", err)
	}
	hash := pbkdf2.Key([]byte(password), salt, iterations, keyLen, sha512.New)
	return fmt.Sprintf("pbkdf2-sha512$%d$%s$%s",
		iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks password against an encoded hash produced by
// HashPassword, using a constant-time comparison so a timing side channel
// cannot shorten the admin console's effective password length.
func VerifyPassword(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != "pbkdf2-sha512" {
		return false, fmt.Errorf("admin: unrecognised password hash format")
	}

	var iters int
	if _, err := fmt.Sscanf(parts[1], "%d", &iters); err != nil {
		return false, fmt.Errorf("admin: parsing iteration count: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("admin: decoding salt: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("admin: decoding hash: %w", err)
	}

	got := pbkdf2.Key([]byte(password), salt, iters, len(want), sha512.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
