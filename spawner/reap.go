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
	"syscall"

	"github.com/CollaboraOnline/online-sub004/logger"
)

// Exit describes one child that Reap collected.
type Exit struct {
	Pid      int
	Jail     JailPaths
	SegFault bool
	ExitCode int
}

// Reap collects every child that has exited since the last call without
// blocking, the same WUNTRACED|WNOHANG loop the fork cycle runs after
// every spawn so the caller's socket poll loop never stalls waiting on a
// live child. It removes each reaped child's jail directory before
// returning.
func (s *Spawner) Reap() []Exit {
	var exits []Exit
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG|syscall.WUNTRACED, nil)
		if err != nil || pid <= 0 {
			break
		}

		s.mu.Lock()
		c, ok := s.children[pid]
		if ok {
			delete(s.children, pid)
		}
		s.mu.Unlock()

		if !ok {
			s.log.Warn("reaped unknown child", logger.Fields{"pid": pid})
			continue
		}

		e := Exit{Pid: pid, Jail: c.Jail}
		if ws.Signaled() && (ws.Signal() == syscall.SIGSEGV || ws.Signal() == syscall.SIGBUS) {
			e.SegFault = true
		}
		if ws.Exited() {
			e.ExitCode = ws.ExitStatus()
		}

		s.log.Info("worker exited, removing jail", logger.Fields{"pid": pid, "jail": c.Jail.Root()})
		if err := c.Jail.Remove(); err != nil {
			s.log.Warn("removing jail", logger.Fields{"jail": c.Jail.Root(), "error": err.Error()})
		}

		exits = append(exits, e)
	}
	return exits
}
