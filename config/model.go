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

// Package config loads and hot-reloads the install-prefix XML configuration
// file, overlays environment variables through viper, and fans out change
// notifications to the ReloadFunc callbacks registered through
// Watcher.OnReload.
package config

import "encoding/xml"

// Root mirrors the top-level XML document named in the external-interfaces
// section: <config> with ssl, storage, net, logging and admin_console
// children, plus the two scalar tuning knobs used by the DocumentBroker.
type Root struct {
	XMLName xml.Name `xml:"config"`

	SSL     SSL     `xml:"ssl"`
	Storage Storage `xml:"storage"`
	Net     Net     `xml:"net"`
	Logging Logging `xml:"logging"`
	Admin   Admin   `xml:"admin_console"`

	NumPreSpawnChildren int `xml:"num_prespawn_children"`
	PerDocument         struct {
		IdleTimeoutSecs        int `xml:"idle_timeout_secs"`
		AutoSaveDurationSecs   int `xml:"autosave_duration_secs"`
	} `xml:"per_document"`

	// ControlSocket is the AF_UNIX path the Gateway dials and the Spawner
	// listens on for the "spawn"/"setconfig"/"exit"/"segfaultcount" pipe
	// protocol described in the external-interfaces section.
	ControlSocket string `xml:"control_socket"`
}

type SSL struct {
	Enable       bool   `xml:"enable,attr"`
	CertFilePath string `xml:"cert_file_path"`
	KeyFilePath  string `xml:"key_file_path"`
	CipherList   string `xml:"cipher_list"`
}

type StorageHost struct {
	Allow   bool   `xml:"allow,attr"`
	Pattern string `xml:",chardata"`
}

type Storage struct {
	Filesystem struct {
		Allow bool `xml:"allow,attr"`
	} `xml:"filesystem"`
	Wopi struct {
		Allow bool          `xml:"allow,attr"`
		Host  []StorageHost `xml:"host"`
	} `xml:"wopi"`
}

type Net struct {
	Listen      string `xml:"listen"`
	ServiceRoot string `xml:"service_root"`
	ProxyPrefix bool   `xml:"proxy_prefix"`
}

type Logging struct {
	Level string `xml:"level,attr"`
	File  struct {
		Path string `xml:"property"`
	} `xml:"file"`
}

type Admin struct {
	Enable         bool   `xml:"enable,attr"`
	SecurePassword string `xml:"secure_password"`
}

// Default returns the configuration used when no XML file is supplied,
// matching the conservative defaults the per-document and framer design
// sections call out (18s ping frequency lives in the framer package, not
// here, since it is not operator-tunable in the source system).
func Default() *Root {
	r := &Root{}
	r.Net.Listen = ":9980"
	r.Net.ServiceRoot = "/"
	r.NumPreSpawnChildren = 2
	r.PerDocument.IdleTimeoutSecs = 3600
	r.PerDocument.AutoSaveDurationSecs = 300
	r.ControlSocket = "/run/online-sub004/spawner.sock"
	r.Logging.Level = "info"
	r.Storage.Wopi.Allow = true
	return r
}
