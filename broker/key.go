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

// Package broker implements the DocumentBroker state machine: the
// per-document actor that funnels traffic between a set of ClientSessions
// and the one Worker that hosts the document, and mediates load/save
// through storage.
package broker

import (
	"net/url"
	"strings"
)

// Key is the canonical, process-wide-unique identifier of a document,
// derived from its normalised WOPI URL. Two clients referencing the same
// document must produce byte-identical keys.
type Key string

// KeyFromWopiSrc normalises a WOPISrc URL into a Key: lower-cased scheme
// and host, stable query-parameter ordering, and no fragment - anything
// that should not distinguish "the same document" is stripped.
func KeyFromWopiSrc(raw string) (Key, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode() // url.Values.Encode sorts by key
	return Key(u.String()), nil
}
