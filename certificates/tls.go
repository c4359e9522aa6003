/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package certificates turns the <ssl> section of the configuration tree
// into a crypto/tls.Config for the Gateway's listener. The version and
// cipher suite enums live in the tlsversion and cipher subpackages; this
// file is the only place that loads key material off disk.
package certificates

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/CollaboraOnline/online-sub004/certificates/cipher"
	"github.com/CollaboraOnline/online-sub004/certificates/tlsversion"
)

// Settings mirrors the fields of config.SSL this package consumes, so it
// does not import config and create a cycle.
type Settings struct {
	CertFilePath string
	KeyFilePath  string
	CipherList   string
}

// Build loads the certificate/key pair named in s and returns a
// *tls.Config restricted to TLS 1.2+ and, when s.CipherList is non-empty,
// to the named cipher suites. An empty CipherList leaves Go's own
// default preference order in place.
func Build(s Settings) (*tls.Config, error) {
	if s.CertFilePath == "" || s.KeyFilePath == "" {
		return nil, fmt.Errorf("certificates: ssl enabled but cert_file_path/key_file_path are empty")
	}

	cert, err := tls.LoadX509KeyPair(s.CertFilePath, s.KeyFilePath)
	if err != nil {
		return nil, fmt.Errorf("certificates: load key pair: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   uint16(tlsversion.VersionTLS12),
		MaxVersion:   uint16(tlsversion.VersionTLS13),
	}

	if s.CipherList == "" {
		return cfg, nil
	}

	for _, name := range strings.Split(s.CipherList, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c := cipher.Parse(name)
		if c == cipher.Unknown {
			return nil, fmt.Errorf("certificates: unsupported cipher suite %q", name)
		}
		cfg.CipherSuites = append(cfg.CipherSuites, c.Uint16())
	}

	return cfg, nil
}
