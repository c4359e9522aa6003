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
	"fmt"
	"regexp"

	"github.com/CollaboraOnline/online-sub004/config"
)

// HostRule is one compiled storage.wopi.host entry.
type HostRule struct {
	Allow   bool
	Pattern *regexp.Regexp
}

// AllowList evaluates a WOPISrc host against the configured allow/deny
// regex list, in document order - the first matching rule wins, and an
// unmatched host is rejected when storage.wopi is enabled at all.
type AllowList struct {
	enabled bool
	rules   []HostRule
}

// NewAllowList compiles the <storage><wopi> section of a config.Root.
func NewAllowList(storage config.Storage) (*AllowList, error) {
	al := &AllowList{enabled: storage.Wopi.Allow}
	for _, h := range storage.Wopi.Host {
		re, err := regexp.Compile(h.Pattern)
		if err != nil {
			return nil, fmt.Errorf("wopi: compiling host pattern %q: %w", h.Pattern, err)
		}
		al.rules = append(al.rules, HostRule{Allow: h.Allow, Pattern: re})
	}
	return al, nil
}

// Allowed reports whether host may be used as a WOPI storage host.
func (al *AllowList) Allowed(host string) bool {
	if !al.enabled {
		return false
	}
	for _, r := range al.rules {
		if r.Pattern.MatchString(host) {
			return r.Allow
		}
	}
	return false
}
