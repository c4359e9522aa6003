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

// Command gateway is the only process with an external listener: it serves
// WOPI discovery, upgrades browsers to the editing WebSocket, and exposes
// the admin status probe and Prometheus metrics. It never renders a tile
// itself - that's the Worker's job, reached indirectly through a
// DocumentBroker and the forkit-spawned child pool.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CollaboraOnline/online-sub004/admin"
	"github.com/CollaboraOnline/online-sub004/broker"
	"github.com/CollaboraOnline/online-sub004/childpool"
	"github.com/CollaboraOnline/online-sub004/config"
	"github.com/CollaboraOnline/online-sub004/httpserver"
	"github.com/CollaboraOnline/online-sub004/logger"
	"github.com/CollaboraOnline/online-sub004/socket"
	"github.com/CollaboraOnline/online-sub004/spawner"
	"github.com/CollaboraOnline/online-sub004/version"
	"github.com/CollaboraOnline/online-sub004/wopi"
)

// Exit codes per the external-interfaces section: 0 clean shutdown, 70 a
// fatal initialisation failure (EX_SOFTWARE), 75 a missing capability the
// process cannot work around (EX_TEMPFAIL).
const (
	exitOK            = 0
	exitSoftware      = 70
	exitMissingCaps   = 75
	proofKeyPEMEnvVar = "COOL_WOPI_PROOF_KEY_PEM"
)

func main() {
	os.Exit(run())
}

func run() int {
	v := viper.New()
	root := &cobra.Command{
		Use:     "gateway",
		Short:   "Serves WOPI discovery, the editing WebSocket, and admin/metrics.",
		Version: version.String("gateway"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, v)
		},
	}
	config.BindFlags(root, v)

	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		return exitSoftware
	}
	return exitOK
}

func serve(cmd *cobra.Command, v *viper.Viper) error {
	watcher, err := config.NewWatcher(v.GetString("config"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := config.Overlay(watcher.Current(), v)

	log := logger.New(colorable.NewColorable(os.Stdout), logger.Parse(cfg.Logging.Level))
	if cfg.Logging.File.Path != "" {
		f, err := os.OpenFile(cfg.Logging.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		log = logger.New(f, logger.Parse(cfg.Logging.Level))
	}
	log.Info("starting", logger.Fields{"component": version.String("gateway")})

	proof, err := loadOrGenerateProofKey(log)
	if err != nil {
		return fmt.Errorf("initialising wopi proof key: %w", err)
	}

	allow, err := wopi.NewAllowList(cfg.Storage)
	if err != nil {
		return fmt.Errorf("compiling storage allow-list: %w", err)
	}

	poll, err := socket.NewPoll("gateway")
	if err != nil {
		return fmt.Errorf("starting socket runtime: %w", err)
	}
	poll.StartThread()
	defer poll.Close()

	watcher.OnReload(func(next *config.Root) error {
		log.Info("configuration reloaded", logger.Fields{})
		return nil
	})
	go func() {
		if err := watcher.Run(); err != nil {
			log.Error("config watcher stopped", err, logger.Fields{})
		}
	}()
	defer watcher.Stop()

	reg := prometheus.NewRegistry()
	metrics := admin.NewMetrics(reg)
	brokers := broker.NewRegistry()

	ctrl, err := spawner.DialControl(cfg.ControlSocket)
	if err != nil {
		return fmt.Errorf("dialing spawner control socket %s: %w", cfg.ControlSocket, err)
	}
	defer ctrl.Close()
	if err := ctrl.Spawn(cfg.NumPreSpawnChildren); err != nil {
		return fmt.Errorf("requesting initial worker pool: %w", err)
	}

	workers := childpool.New(poll, log)
	go watchSpawnerEvents(ctrl, workers, metrics, log)
	go autoSaveLoop(brokers, cfg.PerDocument.AutoSaveDurationSecs, log)

	deps := httpserver.Deps{
		Config:  cfg,
		Log:     log,
		Metrics: metrics,
		Reg:     reg,
		Brokers: brokers,
		WopiCli: wopi.NewClient(proof, 3, 0),
		Allow:   allow,
		Poll:    poll,
		Workers: workers,
	}

	srv := httpserver.New(cfg.Net, cfg.SSL, httpserver.NewRouter(deps), log)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	srv.WaitForSignal()
	log.Info("shut down", logger.Fields{})
	return nil
}

// watchSpawnerEvents drains the Spawner control connection for as long as
// the process runs: every spare Worker it hands over is admitted into
// workers, and every segfault count it reports is added to the admin
// console's crash counter.
func watchSpawnerEvents(ctrl *spawner.ControlClient, workers *childpool.Pool, metrics *admin.Metrics, log logger.Logger) {
	for ev := range ctrl.Events() {
		switch {
		case ev.Spare != nil:
			workers.Offer(*ev.Spare)
		case ev.SegfaultCount > 0:
			log.Warn("workers segfaulted", logger.Fields{"count": ev.SegfaultCount})
			if metrics != nil {
				metrics.KitsSegfaulted.Add(float64(ev.SegfaultCount))
			}
		}
	}
}

// autoSaveLoop periodically sweeps every live DocumentBroker and saves the
// ones that have unsaved changes and have sat idle past idleSecs, per the
// "autosave after idle" scenario in the external-interfaces section.
func autoSaveLoop(brokers *broker.Registry, idleSecs int, log logger.Logger) {
	if idleSecs <= 0 {
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for now := range ticker.C {
		brokers.ForEach(func(b *broker.DocumentBroker) {
			if err := b.AutoSaveCheck(now, idleSecs, b.RequestSave); err != nil {
				log.Warn("autosave failed", logger.Fields{"document": string(b.Key), "error": err.Error()})
			}
		})
	}
}

// loadOrGenerateProofKey reads the proof key PEM from the environment (the
// operator-managed secret a real deployment injects) or mints a fresh one
// for local/dev use. A missing key is not fatal: an ephemeral key is
// generated and requests still carry X-WOPI-Proof, but the key, and so the
// signatures a host would verify, change on every restart.
func loadOrGenerateProofKey(log logger.Logger) (*wopi.ProofKey, error) {
	if pemBytes := os.Getenv(proofKeyPEMEnvVar); pemBytes != "" {
		return wopi.LoadProofKeyPEM([]byte(pemBytes))
	}
	log.Warn("no wopi proof key configured, generating an ephemeral one", logger.Fields{
		"env": proofKeyPEMEnvVar,
	})
	return wopi.GenerateProofKey()
}
