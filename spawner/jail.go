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

// Package spawner owns the privileged rights required to construct a
// sandbox and produce Worker processes: each child is a fresh ForkExec of
// the Worker binary, chrooted into its own jail directory and run under the
// configured uid/gid. No pre-initialised state is shared between children,
// and the Worker installs its syscall filter itself. Exited children are
// reaped without blocking the fork loop.
package spawner

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// NewJailID returns a random 16-byte hex identifier used to name a child's
// jail directory, unguessable so a compromised Worker cannot predict a
// sibling's path.
func NewJailID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("spawner: generating jail id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// JailPaths collects the filesystem locations a single child's sandbox
// needs: the chroot target itself plus the two template trees that get
// bind-mounted or hard-linked into it before the child calls chroot(2).
type JailPaths struct {
	ChildRoot   string
	JailID      string
	SysTemplate string
	LOTemplate  string
	LOSubPath   string
}

// Root is childRoot/jailID, the directory the child chroots into.
func (p JailPaths) Root() string {
	return filepath.Join(p.ChildRoot, p.JailID)
}

// Prepare creates the jail directory. The actual template population
// (bind-mounting sysTemplate and the LibreOffice install tree read-only
// into the jail) is privileged setup a deployment's installer performs
// ahead of time; Prepare only guarantees the mutable per-child directory
// exists before the fork that will chroot into it.
func (p JailPaths) Prepare() error {
	if err := os.MkdirAll(p.Root(), 0o750); err != nil {
		return fmt.Errorf("spawner: preparing jail %s: %w", p.Root(), err)
	}
	return nil
}

// Remove deletes a jail directory tree after its child has exited. Errors
// are not fatal to the caller's reap loop: a leaked jail directory costs
// disk, not correctness, and Spawner.Reap must keep reaping regardless.
func (p JailPaths) Remove() error {
	return os.RemoveAll(p.Root())
}
