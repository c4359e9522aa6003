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
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/CollaboraOnline/online-sub004/logger"
)

// WorkerBinary is the path to the re-exec target: a Worker invoked this way
// performs its own chroot-local initialisation (seccomp install, jail
// verification) before entering its render loop. Spawner never calls
// fork(2) directly in-process - the Go runtime's goroutine scheduler makes
// a bare post-fork child unsafe to use for anything beyond an immediate
// exec, so every child is a ForkExec of a fresh binary image instead.
type WorkerBinary struct {
	Path string
	Args []string
}

// Child tracks one live Worker process for the reap loop.
type Child struct {
	Pid     int
	Jail    JailPaths
	PipeFD  int
	SpareID uint64
}

// Spawner owns the fork cycle: pre-initialisation, templated jail
// construction, privilege drop via SysProcAttr, and non-blocking reaping
// of exited children so the caller's poll loop never stalls on waitpid.
type Spawner struct {
	log         logger.Logger
	binary      WorkerBinary
	childRoot   string
	sysTemplate string
	loTemplate  string
	loSubPath   string
	uid, gid    int

	mu       sync.Mutex
	children map[int]*Child
	spareSeq uint64
}

// Option configures a Spawner at construction time.
type Option func(*Spawner)

// WithCredential runs every forked Worker as the given uid/gid instead of
// inheriting the Spawner's own, the capability-drop step the fork cycle
// performs immediately after fork and before chroot.
func WithCredential(uid, gid int) Option {
	return func(s *Spawner) { s.uid, s.gid = uid, gid }
}

// New builds a Spawner. sysTemplate and loTemplate are the read-only
// template trees each jail is populated from; childRoot is the directory
// under which every jail subdirectory is created.
func New(log logger.Logger, binary WorkerBinary, childRoot, sysTemplate, loTemplate, loSubPath string, opts ...Option) *Spawner {
	s := &Spawner{
		log:         log,
		binary:      binary,
		childRoot:   childRoot,
		sysTemplate: sysTemplate,
		loTemplate:  loTemplate,
		loSubPath:   loSubPath,
		uid:         os.Getuid(),
		gid:         os.Getgid(),
		children:    make(map[int]*Child),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Spawn runs one fork cycle: generate a jail id, prepare its directory,
// and ForkExec the Worker binary chrooted into it. It returns the child's
// pid and the pipe fd the parent should use to talk to it.
func (s *Spawner) Spawn() (*Child, error) {
	jailID, err := NewJailID()
	if err != nil {
		return nil, err
	}

	jail := JailPaths{
		ChildRoot:   s.childRoot,
		JailID:      jailID,
		SysTemplate: s.sysTemplate,
		LOTemplate:  s.loTemplate,
		LOSubPath:   s.loSubPath,
	}
	if err := jail.Prepare(); err != nil {
		return nil, err
	}

	parentPipe, childPipe, err := makeSocketPair()
	if err != nil {
		return nil, err
	}
	defer syscall.Close(childPipe)

	argv := append([]string{s.binary.Path, "--jail-root", jail.Root(), "--jail-id", jailID}, s.binary.Args...)

	attr := &syscall.ProcAttr{
		Env: os.Environ(),
		// fd 3 is the Worker's end of the Gateway<->Worker socket; 0-2 pass
		// stdin/stdout/stderr through unchanged.
		Files: []uintptr{0, 1, 2, uintptr(childPipe)},
		Sys: &syscall.SysProcAttr{
			Chroot:     jail.Root(),
			Credential: &syscall.Credential{Uid: uint32(s.uid), Gid: uint32(s.gid)},
			Pdeathsig:  syscall.SIGKILL,
		},
	}

	pid, err := syscall.ForkExec(s.binary.Path, argv, attr)
	if err != nil {
		syscall.Close(parentPipe)
		_ = jail.Remove()
		return nil, fmt.Errorf("spawner: fork/exec worker: %w", err)
	}

	s.mu.Lock()
	s.spareSeq++
	c := &Child{Pid: pid, Jail: jail, PipeFD: parentPipe, SpareID: s.spareSeq}
	s.children[pid] = c
	s.mu.Unlock()

	s.log.Info("forked worker", logger.Fields{"pid": pid, "jail": jail.Root(), "spare": c.SpareID})
	return c, nil
}

// Kill sends SIGTERM to every tracked child, used during graceful shutdown
// before the parent itself exits.
func (s *Spawner) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for pid := range s.children {
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
}

// Len reports the number of children the Spawner currently believes are
// alive.
func (s *Spawner) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// makeSocketPair opens the full-duplex AF_UNIX socket a forked Worker and
// the process holding the other end use for the WebSocket-framed pipe
// protocol: tiles flow one way, commands the other, on the very same fd.
// A plain pipe(2) only moves bytes in one direction and cannot carry that
// traffic.
func makeSocketPair() (parent, child int, err error) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("spawner: creating worker socket pair: %w", err)
	}
	return fds[0], fds[1], nil
}
