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

// Package httpserver owns the Gateway's single external listener: WOPI
// discovery, the WebSocket upgrade the editing protocol runs over, and the
// Prometheus scrape endpoint all share one net.Listener and one
// http.Server, the way the external-interfaces section assumes one
// well-known port per Gateway instance.
package httpserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/http2"

	"github.com/CollaboraOnline/online-sub004/certificates"
	"github.com/CollaboraOnline/online-sub004/config"
	liberr "github.com/CollaboraOnline/online-sub004/errors"
	"github.com/CollaboraOnline/online-sub004/logger"
)

// shutdownTimeout bounds how long Shutdown waits for in-flight requests -
// mainly long-poll WebSocket upgrades - to drain before forcing the
// listener closed.
const shutdownTimeout = 10 * time.Second

// Server is the Gateway's HTTP(S) listener. Its zero value is not usable;
// construct with New.
type Server struct {
	net     config.Net
	ssl     config.SSL
	handler http.Handler
	log     logger.Logger

	srv     *http.Server
	ln      net.Listener
	running atomic.Bool
}

// New builds a Server bound to netCfg.Listen, serving handler, and TLS
// configured from sslCfg when sslCfg.Enable is set. It does not bind until
// Listen is called.
func New(netCfg config.Net, sslCfg config.SSL, handler http.Handler, log logger.Logger) *Server {
	return &Server{net: netCfg, ssl: sslCfg, handler: handler, log: log}
}

// IsTLS reports whether this Server terminates TLS itself.
func (s *Server) IsTLS() bool { return s.ssl.Enable }

// IsRunning reports whether the listener goroutine is currently serving.
func (s *Server) IsRunning() bool { return s.running.Load() }

// Addr returns the bound address. Only meaningful after a successful
// Listen; useful in tests that bind to ":0" and need the chosen port.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Listen binds net.listen, wraps it in TLS when ssl.enable is set, and
// starts serving in a background goroutine. It returns once the bind has
// succeeded, so a caller can treat a Listen error as a startup failure
// (exit code 70) rather than something discovered asynchronously.
func (s *Server) Listen() liberr.Error {
	ln, err := net.Listen("tcp", s.net.Listen)
	if err != nil {
		return liberr.New(liberr.CodeFatal, fmt.Sprintf("binding %s", s.net.Listen), err)
	}

	s.srv = &http.Server{Handler: s.handler}

	if s.ssl.Enable {
		tlsCfg, err := certificates.Build(certificates.Settings{
			CertFilePath: s.ssl.CertFilePath,
			KeyFilePath:  s.ssl.KeyFilePath,
			CipherList:   s.ssl.CipherList,
		})
		if err != nil {
			_ = ln.Close()
			return liberr.New(liberr.CodeFatal, "building tls config", err)
		}
		if err := http2.ConfigureServer(s.srv, &http2.Server{}); err != nil {
			_ = ln.Close()
			return liberr.New(liberr.CodeFatal, "configuring http2", err)
		}
		s.srv.TLSConfig = tlsCfg
		ln = tls.NewListener(ln, tlsCfg)
	}

	s.ln = ln
	s.running.Store(true)

	go func() {
		serveErr := s.srv.Serve(ln)
		s.running.Store(false)
		if serveErr != nil && serveErr != http.ErrServerClosed {
			s.log.Error("http server exited", serveErr, logger.Fields{"addr": s.net.Listen})
		}
	}()

	s.log.Info("listening", logger.Fields{"addr": s.net.Listen, "tls": s.ssl.Enable})
	return nil
}

// WaitForSignal blocks until SIGINT, SIGTERM or SIGQUIT arrives, then
// performs a graceful Shutdown. Intended to be the last call in a
// component's main function.
func (s *Server) WaitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	s.Shutdown()
}

// Shutdown drains in-flight requests for up to shutdownTimeout, then
// forces the listener closed if it has not quiesced by then.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("graceful shutdown timed out, forcing close", err, logger.Fields{})
		_ = s.srv.Close()
	}
	s.running.Store(false)
}
