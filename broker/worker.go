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

package broker

import "time"

// WorkerHandle is the Gateway-side reference to a Worker process: enough to
// route messages to it and to judge its liveness, without owning its
// lifecycle (the Spawner reaps the pid).
type WorkerHandle struct {
	Pid      int
	PipeFD   int
	JailPath string

	LastSeen time.Time

	send func([]byte) error
}

// NewWorkerHandle wraps the pipe write function the Gateway's socket
// runtime uses to forward a message to this Worker.
func NewWorkerHandle(pid int, pipeFD int, jailPath string, send func([]byte) error) *WorkerHandle {
	return &WorkerHandle{Pid: pid, PipeFD: pipeFD, JailPath: jailPath, LastSeen: time.Now(), send: send}
}

// Send forwards msg to the Worker over its pipe.
func (w *WorkerHandle) Send(msg []byte) error {
	w.LastSeen = time.Now()
	return w.send(msg)
}
