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

package config

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// BindFlags registers the handful of flags the gateway and spawner
// entrypoints accept (cmd/worker does not call it), and overlays matching environment
// variables under the COOL_ prefix through viper - e.g. COOL_NET_LISTEN
// overrides --listen. Flags win over the XML file, which wins over
// Default().
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.PersistentFlags().String("config", "", "path to the XML configuration file")
	cmd.PersistentFlags().String("listen", "", "override net.listen, e.g. :9980")
	cmd.PersistentFlags().String("log-level", "", "override logging.level")

	_ = v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("net.listen", cmd.PersistentFlags().Lookup("listen"))
	_ = v.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))

	v.SetEnvPrefix("COOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Overlay applies any viper-bound flag/env values on top of an already
// loaded Root, so a bare `--listen` works even against Default() when no
// --config was given.
func Overlay(root *Root, v *viper.Viper) *Root {
	if l := v.GetString("net.listen"); l != "" {
		root.Net.Listen = l
	}
	if lvl := v.GetString("logging.level"); lvl != "" {
		root.Logging.Level = lvl
	}
	return root
}
