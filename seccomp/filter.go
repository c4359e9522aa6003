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

// Package seccomp installs the post-fork syscall filter: after capability
// drop but before any document-derived code runs, it converts a deny list
// of syscalls into a trapping signal and kills the process on an
// architecture mismatch. Once installed, the filter traps seccomp(2), the
// call Install itself uses, so the same process cannot add a second filter.
package seccomp

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// offsetNR and offsetArch locate the syscall number and the audit
	// architecture slot within struct seccomp_data, per the kernel ABI.
	offsetNR   = 0
	offsetArch = 4
)

// allowList is evaluated before denyList: recv, write, futex, epoll_wait,
// epoll_ctl, epoll_create, close, nanosleep are always permitted, since the
// Worker's render loop and the socket runtime need them on every
// iteration.
var allowList = []uintptr{
	unix.SYS_READ,
	unix.SYS_WRITE,
	unix.SYS_RECVFROM,
	unix.SYS_FUTEX,
	unix.SYS_EPOLL_WAIT,
	unix.SYS_EPOLL_CTL,
	unix.SYS_EPOLL_CREATE1,
	unix.SYS_CLOSE,
	unix.SYS_NANOSLEEP,
}

// denyList enumerates the syscalls a document-rendering Worker must never
// reach post-fork: interval timers, sendfile, socket listen/accept/
// shutdown, signal delivery to other processes, ptrace, extra shared
// object loading, personality changes, LDT manipulation, chroot/pivot_root,
// sync, mount/umount, swap control, reboot, host/domain name changes,
// thread-directed kill, NUMA policy, kexec, keyring, inotify, unshare,
// splice/tee/vmsplice, page migration, accept4, perf_event_open, fanotify,
// and installing a further filter.
var denyList = []uintptr{
	unix.SYS_SETITIMER,
	unix.SYS_SENDFILE,
	unix.SYS_SHUTDOWN,
	unix.SYS_LISTEN,
	unix.SYS_ACCEPT,
	unix.SYS_ACCEPT4,
	unix.SYS_KILL,
	unix.SYS_TKILL,
	unix.SYS_TGKILL,
	unix.SYS_PTRACE,
	unix.SYS_PERSONALITY,
	unix.SYS_MODIFY_LDT,
	unix.SYS_CHROOT,
	unix.SYS_PIVOT_ROOT,
	unix.SYS_SYNC,
	unix.SYS_MOUNT,
	unix.SYS_UMOUNT2,
	unix.SYS_SWAPON,
	unix.SYS_SWAPOFF,
	unix.SYS_REBOOT,
	unix.SYS_SETHOSTNAME,
	unix.SYS_SETDOMAINNAME,
	unix.SYS_SET_MEMPOLICY,
	unix.SYS_MBIND,
	unix.SYS_KEXEC_LOAD,
	unix.SYS_ADD_KEY,
	unix.SYS_REQUEST_KEY,
	unix.SYS_KEYCTL,
	unix.SYS_INOTIFY_INIT,
	unix.SYS_INOTIFY_INIT1,
	unix.SYS_UNSHARE,
	unix.SYS_SPLICE,
	unix.SYS_TEE,
	unix.SYS_VMSPLICE,
	unix.SYS_MOVE_PAGES,
	unix.SYS_PERF_EVENT_OPEN,
	unix.SYS_FANOTIFY_INIT,
	unix.SYS_SECCOMP,
}

// Install sets PR_SET_NO_NEW_PRIVS and loads a deny-list BPF program into
// the kernel, per the monotonicity property: once installed, a second call
// from the same process fails with EPERM or raises SIGSYS, since this
// program itself denies the seccomp(2) syscall.
func Install() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: PR_SET_NO_NEW_PRIVS: %w", err)
	}

	prog, err := buildProgram()
	if err != nil {
		return err
	}

	// seccomp(SECCOMP_SET_MODE_FILTER) rather than prctl(PR_SET_SECCOMP), so
	// that the SYS_SECCOMP entry in denyList covers this very call.
	const seccompSetModeFilter = 1
	if _, _, errno := unix.Syscall(unix.SYS_SECCOMP, seccompSetModeFilter, 0, uintptr(unsafe.Pointer(prog))); errno != 0 {
		return fmt.Errorf("seccomp: SECCOMP_SET_MODE_FILTER: %w", errno)
	}
	return nil
}

func buildProgram() (*unix.SockFprog, error) {
	var filter []unix.SockFilter

	// 1. Validate architecture; mismatch kills the process outright.
	filter = append(filter,
		stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, offsetArch),
		jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, auditArch(), 1, 0),
		ret(unix.SECCOMP_RET_KILL_PROCESS),
	)

	// 2. Load the syscall number once; every subsequent comparison reuses
	// the accumulator.
	filter = append(filter, stmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, offsetNR))

	for _, nr := range allowList {
		filter = append(filter, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 1), ret(unix.SECCOMP_RET_ALLOW))
	}
	for _, nr := range denyList {
		filter = append(filter, jump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 1), ret(unix.SECCOMP_RET_TRAP))
	}

	// 3. Default-allow: anything not explicitly named passes through.
	filter = append(filter, ret(unix.SECCOMP_RET_ALLOW))

	if len(filter) > 0xFFFF {
		return nil, fmt.Errorf("seccomp: filter program too large (%d instructions)", len(filter))
	}

	return &unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}, nil
}

func stmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: 0, Jf: 0, K: k}
}

func jump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

func ret(k uint32) unix.SockFilter {
	return unix.SockFilter{Code: unix.BPF_RET | unix.BPF_K, Jt: 0, Jf: 0, K: k}
}
