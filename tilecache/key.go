/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package tilecache deduplicates rendering work and transmission for a
// single document's tiles: it is the fingerprint-to-bitmap map a
// DocumentBroker consults before ever asking its Worker to render anything,
// and the coalescing point that guarantees a tile is never rendered twice
// concurrently for two sessions that asked for the same thing.
package tilecache

import "fmt"

// Key fingerprints a tile request. Version is deliberately excluded: two
// requests for the same part/canvas/position/size are the same tile
// regardless of the document version that produced them, and a newer
// version simply replaces the cached entry for this Key.
type Key struct {
	Part     int
	CanvasW  int
	CanvasH  int
	PosX     int
	PosY     int
	TileW    int
	TileH    int
}

// Valid reports whether the descriptor satisfies the dimensional
// invariants: canvas and tile dimensions strictly positive, positions
// non-negative.
func (k Key) Valid() bool {
	return k.CanvasW > 0 && k.CanvasH > 0 && k.TileW > 0 && k.TileH > 0 &&
		k.PosX >= 0 && k.PosY >= 0 && k.Part >= 0
}

func (k Key) String() string {
	return fmt.Sprintf("part=%d width=%d height=%d tileposx=%d tileposy=%d tilewidth=%d tileheight=%d",
		k.Part, k.CanvasW, k.CanvasH, k.PosX, k.PosY, k.TileW, k.TileH)
}

// Descriptor is a Key plus the fields that ride along in the wire grammar
// but do not participate in cache identity: an id (ParseTileRequest sets it
// to the Key's String form) and the requested version.
type Descriptor struct {
	Key
	ID      string
	Version int64
	Bcast   bool
}
