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
	"encoding/json"
	"reflect"
	"strings"

	libctx "github.com/CollaboraOnline/online-sub004/context"
)

// knownFileInfoKeys is populated once from FileInfo's own json tags, so
// ExtraProperties never duplicates a field the struct already decodes.
var knownFileInfoKeys = fileInfoJSONKeys()

func fileInfoJSONKeys() map[string]bool {
	keys := map[string]bool{}
	t := reflect.TypeOf(FileInfo{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

// ExtraProperties decodes raw, a WOPI CheckFileInfo JSON response, into a
// libctx.Config holding every top-level property FileInfo's fixed struct
// does not already cover - the vendor-specific extensions hosts are free to
// add to the response.
func ExtraProperties(raw []byte) (libctx.Config[string], error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	cfg := libctx.New[string](nil)
	for k, v := range m {
		if knownFileInfoKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		cfg.Store(k, val)
	}
	return cfg, nil
}
