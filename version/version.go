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

// Package version carries the build-time identifiers every process prints
// on --version and attaches to its startup log line: the release tag, the
// VCS commit hash, and the build timestamp. All three are populated via
// -ldflags at link time; the zero values below are what a `go build`
// without those flags produces.
package version

import "fmt"

var (
	// Release is the human release tag, e.g. "24.04.1".
	Release = "dev"
	// Hash is the VCS commit the binary was built from.
	Hash = "unknown"
	// BuildDate is an RFC3339 timestamp set at link time.
	BuildDate = "unknown"
)

// String renders the one-line identifier the Gateway, Spawner and Worker
// all log at startup and print for --version.
func String(component string) string {
	return fmt.Sprintf("%s %s (%s, built %s)", component, Release, Hash, BuildDate)
}
