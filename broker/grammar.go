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

package broker

import (
	"bytes"
	"strings"

	"github.com/CollaboraOnline/online-sub004/tilecache"
)

// splitCommand splits a client or Worker message into its leading command
// token and the remainder, per the client message grammar: first token is
// the command, everything after is space-separated key=value arguments.
func splitCommand(msg []byte) (cmd, rest string) {
	s := strings.TrimSpace(string(msg))
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

const tileResultPrefix = "tile: "

// SplitTileResult reports whether payload is a Worker's rendered-tile
// response ("tile: <descriptor>\n<binary>") and, if so, the Key it answers
// and the bitmap following the header line. A gateway-side worker-message
// router calls this before falling back to a plain broadcast, since tile
// responses are routed to whichever fetchTile call is waiting rather than
// shown to every session.
func SplitTileResult(payload []byte) (k tilecache.Key, bitmap []byte, ok bool) {
	if !bytes.HasPrefix(payload, []byte(tileResultPrefix)) {
		return tilecache.Key{}, nil, false
	}
	nl := bytes.IndexByte(payload, '\n')
	if nl < 0 {
		return tilecache.Key{}, nil, false
	}
	desc := string(payload[len(tileResultPrefix):nl])
	k, err := tilecache.ParseKey(desc)
	if err != nil {
		return tilecache.Key{}, nil, false
	}
	return k, payload[nl+1:], true
}

const saveResultPrefix = "saveas "

// SplitSaveResult reports whether payload is a Worker's response to a
// "save" request ("saveas result=..\n<binary>") and, if so, the serialised
// document bytes that follow the header line.
func SplitSaveResult(payload []byte) (body []byte, ok bool) {
	if !bytes.HasPrefix(payload, []byte(saveResultPrefix)) {
		return nil, false
	}
	nl := bytes.IndexByte(payload, '\n')
	if nl < 0 {
		return nil, false
	}
	return payload[nl+1:], true
}
