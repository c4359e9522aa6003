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

package wsframe

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http"
)

// websocketGUID is the fixed string RFC 6455 section 1.3 defines for
// deriving Sec-WebSocket-Accept from the client's key.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrNotUpgradeable is returned by ValidateUpgrade when the request does not carry
// a valid WebSocket handshake.
var ErrNotUpgradeable = errors.New("wsframe: not a websocket upgrade request")

// Accept computes the Sec-WebSocket-Accept value for a given client key per
// the standard SHA-1/base64 handshake.
func Accept(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidateUpgrade checks the headers of an incoming request against the
// handshake requirements: version 13 and a present key. It does not write
// a response; callers compose the 101 status line themselves (the gateway
// may be serving through net/http or directly off a raw socket).
func ValidateUpgrade(h http.Header) (acceptKey string, err error) {
	if h.Get("Upgrade") == "" || h.Get("Connection") == "" {
		return "", ErrNotUpgradeable
	}
	if h.Get("Sec-WebSocket-Version") != "13" {
		return "", ErrNotUpgradeable
	}
	key := h.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", ErrNotUpgradeable
	}
	return Accept(key), nil
}

// UpgradeResponse renders the literal 101 response bytes for a validated
// handshake, ready to write directly to the client socket.
func UpgradeResponse(acceptKey string) []byte {
	return []byte("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey + "\r\n\r\n")
}
