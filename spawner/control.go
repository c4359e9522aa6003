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

package spawner

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/CollaboraOnline/online-sub004/logger"
)

// DefaultControlSocket is the well-known path the Gateway dials and the
// Spawner listens on when the operator does not override it with
// --control-socket.
const DefaultControlSocket = "/run/online-sub004/spawner.sock"

// ControlServer is the Spawner-side half of the Gateway<->Spawner pipe
// protocol: plain newline-terminated commands in ("spawn N", "setconfig
// name value", "exit"), "segfaultcount N" events out. It also carries one
// extension the protocol's own vocabulary has no room for: handing a freshly
// forked Worker's socket fd to the Gateway, since that fd has to cross a
// process boundary somehow and ancillary data on this same connection is
// the only channel the two processes share.
type ControlServer struct {
	pool *Pool
	s    *Spawner
	log  logger.Logger

	mu   sync.Mutex
	conn *net.UnixConn
}

// NewControlServer builds a ControlServer driving pool's target count and
// s's lifecycle.
func NewControlServer(pool *Pool, s *Spawner, log logger.Logger) *ControlServer {
	return &ControlServer{pool: pool, s: s, log: log}
}

// Serve reads commands from conn until it closes or sends "exit". Only one
// Gateway connection is served at a time, matching "it communicates only
// with the Gateway".
func (c *ControlServer) Serve(conn *net.UnixConn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	c.topUpAndAnnounce(conn)

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "spawn":
			if len(fields) != 2 {
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			c.pool.SetTarget(n)
			c.topUpAndAnnounce(conn)
		case "setconfig":
			if len(fields) != 3 {
				continue
			}
			applyRlimit(fields[1], fields[2], c.log)
		case "exit":
			c.s.Kill()
			return
		}
	}
}

// Topup tries to bring the warm pool up to its current target and hands
// every new spare to whichever Gateway connection is attached, for use from
// the Spawner's own reap ticker in addition to the "spawn" command path.
func (c *ControlServer) Topup() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.topUpAndAnnounce(conn)
}

func (c *ControlServer) topUpAndAnnounce(conn *net.UnixConn) {
	for _, child := range c.pool.Topup() {
		if err := announceSpare(conn, child); err != nil {
			c.log.Warn("handing spare worker fd to gateway", logger.Fields{"pid": child.Pid, "error": err.Error()})
			_ = syscall.Close(child.PipeFD)
			continue
		}
		// The Gateway now owns this end; the fork cycle's data-plane
		// involvement with this Worker ends here.
		_ = syscall.Close(child.PipeFD)
	}
}

// announceSpare writes one text line plus an SCM_RIGHTS control message
// carrying child's socket fd in a single sendmsg(2) call, so the Gateway
// can never observe the line without the fd that goes with it.
func announceSpare(conn *net.UnixConn, child *Child) error {
	line := fmt.Sprintf("spare %d %s\n", child.Pid, child.Jail.Root())
	oob := unix.UnixRights(child.PipeFD)
	_, _, err := conn.WriteMsgUnix([]byte(line), oob, nil)
	return err
}

// ReportSegfaults notifies the connected Gateway, if any, that n Workers
// have exited via SIGSEGV/SIGBUS since the last report.
func (c *ControlServer) ReportSegfaults(n int) {
	if n == 0 {
		return
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	fmt.Fprintf(conn, "segfaultcount %d\n", n)
}

var rlimitByName = map[string]int{
	"nofile": unix.RLIMIT_NOFILE,
	"as":     unix.RLIMIT_AS,
	"cpu":    unix.RLIMIT_CPU,
	"fsize":  unix.RLIMIT_FSIZE,
}

// applyRlimit handles one "setconfig <rlimit-name> <value>" command,
// applied to the Spawner process itself so every Worker it subsequently
// forks inherits the limit.
func applyRlimit(name, value string, log logger.Logger) {
	res, ok := rlimitByName[strings.ToLower(name)]
	if !ok {
		log.Warn("setconfig: unknown rlimit", logger.Fields{"name": name})
		return
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		log.Warn("setconfig: invalid value", logger.Fields{"name": name, "value": value})
		return
	}
	if err := unix.Setrlimit(res, &unix.Rlimit{Cur: n, Max: n}); err != nil {
		log.Warn("setconfig: setrlimit failed", logger.Fields{"name": name, "error": err.Error()})
	}
}
