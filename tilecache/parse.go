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

package tilecache

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseKey parses a Key back out of its own String() form, the form a
// Worker's "tile: <descriptor>" response header carries.
func ParseKey(s string) (Key, error) {
	fields := parseFields(s)
	part, err := intField(fields, "part")
	if err != nil {
		return Key{}, err
	}
	width, err := intField(fields, "width")
	if err != nil {
		return Key{}, err
	}
	height, err := intField(fields, "height")
	if err != nil {
		return Key{}, err
	}
	tileWidth, err := intField(fields, "tilewidth")
	if err != nil {
		return Key{}, err
	}
	tileHeight, err := intField(fields, "tileheight")
	if err != nil {
		return Key{}, err
	}
	x, err := intField(fields, "tileposx")
	if err != nil {
		return Key{}, err
	}
	y, err := intField(fields, "tileposy")
	if err != nil {
		return Key{}, err
	}

	k := Key{Part: part, CanvasW: width, CanvasH: height, PosX: x, PosY: y, TileW: tileWidth, TileH: tileHeight}
	if !k.Valid() {
		return Key{}, fmt.Errorf("tilecache: invalid key %q", s)
	}
	return k, nil
}

// ParseTileRequest parses the argument portion of a client "tile" or
// "tilecombine" command (everything after the command word) into one
// Descriptor per requested tile. tilecombine's tileposx/tileposy/ver fields
// are comma-separated parallel lists, one element per tile in the batch;
// tile's are bare scalars, a batch of exactly one.
func ParseTileRequest(combine bool, args string) ([]Descriptor, error) {
	fields := parseFields(args)

	part, err := intField(fields, "part")
	if err != nil {
		return nil, err
	}
	width, err := intField(fields, "width")
	if err != nil {
		return nil, err
	}
	height, err := intField(fields, "height")
	if err != nil {
		return nil, err
	}
	tileWidth, err := intField(fields, "tilewidth")
	if err != nil {
		return nil, err
	}
	tileHeight, err := intField(fields, "tileheight")
	if err != nil {
		return nil, err
	}

	xs := strings.Split(fields["tileposx"], ",")
	ys := strings.Split(fields["tileposy"], ",")
	vers := strings.Split(fields["ver"], ",")
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("tilecache: tileposx/tileposy list length mismatch")
	}
	if len(vers) != 1 && len(vers) != len(xs) {
		return nil, fmt.Errorf("tilecache: ver list length mismatch")
	}
	if !combine && len(xs) != 1 {
		return nil, fmt.Errorf("tilecache: tile command must name exactly one position")
	}

	descs := make([]Descriptor, 0, len(xs))
	for i := range xs {
		x, err := strconv.Atoi(strings.TrimSpace(xs[i]))
		if err != nil {
			return nil, fmt.Errorf("tilecache: parsing tileposx: %w", err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(ys[i]))
		if err != nil {
			return nil, fmt.Errorf("tilecache: parsing tileposy: %w", err)
		}
		verStr := vers[0]
		if len(vers) == len(xs) {
			verStr = vers[i]
		}
		ver, err := strconv.ParseInt(strings.TrimSpace(verStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tilecache: parsing ver: %w", err)
		}

		k := Key{Part: part, CanvasW: width, CanvasH: height, PosX: x, PosY: y, TileW: tileWidth, TileH: tileHeight}
		if !k.Valid() {
			return nil, fmt.Errorf("tilecache: invalid tile request %+v", k)
		}
		descs = append(descs, Descriptor{Key: k, ID: k.String(), Version: ver, Bcast: combine})
	}
	return descs, nil
}

func parseFields(s string) map[string]string {
	out := make(map[string]string)
	for _, tok := range strings.Fields(s) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func intField(fields map[string]string, name string) (int, error) {
	v, ok := fields[name]
	if !ok {
		return 0, fmt.Errorf("tilecache: missing %s", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("tilecache: parsing %s: %w", name, err)
	}
	return n, nil
}
