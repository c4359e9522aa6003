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

// Command spawner keeps a pool of pre-forked, jailed Worker processes warm
// so that a newly opened document never pays fork/chroot/seccomp-install
// latency on its own request path. It owns no TCP listener; it talks to the
// Gateway over the AF_UNIX control socket named by control_socket, handing
// each forked Worker's socket fd to the Gateway on that connection.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CollaboraOnline/online-sub004/config"
	"github.com/CollaboraOnline/online-sub004/logger"
	"github.com/CollaboraOnline/online-sub004/spawner"
	"github.com/CollaboraOnline/online-sub004/version"
)

const (
	exitOK          = 0
	exitSoftware    = 70
	exitMissingCaps = 75

	reapInterval = 500 * time.Millisecond
)

func main() {
	os.Exit(run())
}

func run() int {
	v := viper.New()
	var workerPath string
	root := &cobra.Command{
		Use:     "spawner",
		Short:   "Keeps a warm pool of jailed Worker processes for the Gateway.",
		Version: version.String("spawner"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return supervise(v, workerPath)
		},
	}
	config.BindFlags(root, v)
	root.PersistentFlags().StringVar(&workerPath, "worker-binary", "", "path to the worker re-exec binary")
	_ = root.MarkPersistentFlagRequired("worker-binary")

	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		return exitSoftware
	}
	return exitOK
}

func supervise(v *viper.Viper, workerPath string) error {
	if _, err := os.Stat(workerPath); err != nil {
		return fmt.Errorf("worker binary %s: %w", workerPath, err)
	}
	if os.Getuid() != 0 {
		// chroot(2) and the credential drop in Spawner.Spawn both require
		// CAP_SYS_CHROOT/CAP_SETUID; running unprivileged here is a missing
		// capability, not a bug to recover from.
		fmt.Fprintln(os.Stderr, "spawner: must run as root to chroot and drop privileges")
		os.Exit(exitMissingCaps)
	}

	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg = config.Overlay(cfg, v)

	log := logger.New(colorable.NewColorable(os.Stdout), logger.Parse(cfg.Logging.Level))
	log.Info("starting", logger.Fields{"component": version.String("spawner")})

	childRoot, err := os.MkdirTemp("", "online-jails-")
	if err != nil {
		return fmt.Errorf("preparing jail root: %w", err)
	}
	defer os.RemoveAll(childRoot)

	s := spawner.New(log, spawner.WorkerBinary{Path: workerPath}, childRoot, "/usr/share/online/systemplate", "/usr/share/online/loltemplate", "loleaflet")
	pool := spawner.NewPool(s, cfg.NumPreSpawnChildren)
	control := spawner.NewControlServer(pool, s, log)

	controlSocket := cfg.ControlSocket
	_ = os.Remove(controlSocket)
	if err := os.MkdirAll(filepath.Dir(controlSocket), 0o750); err != nil {
		return fmt.Errorf("preparing control socket directory: %w", err)
	}
	listener, err := net.Listen("unix", controlSocket)
	if err != nil {
		return fmt.Errorf("listening on control socket %s: %w", controlSocket, err)
	}
	defer listener.Close()
	go acceptControlConns(listener, control, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			log.Info("shutting down, killing warm pool", logger.Fields{})
			s.Kill()
			return nil
		case <-ticker.C:
			control.Topup()
			segfaults := 0
			for _, exit := range s.Reap() {
				if exit.SegFault {
					segfaults++
					log.Warn("worker crashed", logger.Fields{"pid": exit.Pid, "exit_code": exit.ExitCode})
				} else {
					log.Info("worker exited", logger.Fields{"pid": exit.Pid, "exit_code": exit.ExitCode})
				}
			}
			control.ReportSegfaults(segfaults)
		}
	}
}

// acceptControlConns serves Gateway connections on the control socket one
// at a time, matching "it communicates only with the Gateway" - control.Serve
// runs until the current connection ends, so a second connection is not
// accepted until the first one has closed.
func acceptControlConns(listener net.Listener, control *spawner.ControlServer, log logger.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		uc, ok := conn.(*net.UnixConn)
		if !ok {
			conn.Close()
			continue
		}
		log.Info("gateway connected", logger.Fields{})
		control.Serve(uc)
		log.Warn("gateway control connection closed", logger.Fields{})
	}
}
