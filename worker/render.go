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

package worker

import (
	"encoding/binary"
	"time"

	"github.com/CollaboraOnline/online-sub004/tilecache"
)

// RenderPlaceholder stands in for the native rendering engine, which links
// into this process but is out of this module's scope: one grayscale byte
// per pixel, shaded from k's part and position so distinct tiles produce
// distinct bytes and repeated requests for the same tile are byte-for-byte
// identical - enough for the cache, the wire framing, and the dedup path
// around it to be exercised end-to-end without a real document open.
func RenderPlaceholder(k tilecache.Key) []byte {
	w, h := k.TileW, k.TileH
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	shade := byte((k.Part*31 + k.PosX/max1(w) + k.PosY/max1(h)) & 0xff)
	out := make([]byte, w*h)
	for i := range out {
		out[i] = shade
	}
	return out
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// SerializePlaceholder stands in for the native document serializer this
// module does not implement: a small deterministic payload stamped with
// the moment it ran, enough to drive the save round-trip (Worker response
// -> DocumentBroker.DeliverSaveResult -> WOPI PutFile) through its full
// path without a real export filter.
func SerializePlaceholder(at time.Time) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(at.UnixNano()))
	return out
}
