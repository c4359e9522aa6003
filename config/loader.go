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
	"encoding/xml"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called with the newly parsed configuration every time the
// watched file changes. A non-nil error from a ReloadFunc is discarded
// without being logged and never stops the watch loop - a bad edit must not
// wedge a running gateway.
type ReloadFunc func(*Root) error

// Watcher owns a single fsnotify.Watcher bound to one config file path and
// fans out parsed reloads to every Component that registered a ReloadFunc.
// This mirrors the Start/Reload/Stop lifecycle the toolkit's component
// registry drives each Component through, collapsed here to the one
// responsibility this program needs: keep the in-memory Root current.
type Watcher struct {
	path string

	mu      sync.RWMutex
	current *Root

	onReload []ReloadFunc

	fsw  *fsnotify.Watcher
	done chan struct{}
}

// Load parses the XML document at path. An empty path returns Default().
func Load(path string) (*Root, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	r := Default()
	if err := xml.NewDecoder(f).Decode(r); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return r, nil
}

// NewWatcher loads path once and arranges to re-load it on every write,
// notifying each registered ReloadFunc in registration order.
func NewWatcher(path string) (*Watcher, error) {
	root, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{path: path, current: root, done: make(chan struct{})}

	if path == "" {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}
	w.fsw = fsw
	return w, nil
}

// OnReload registers fn to run after every successful re-parse. Registering
// after Run has started is safe; fn simply won't see reloads already in
// flight.
func (w *Watcher) OnReload(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Root {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run blocks processing fsnotify events until Stop is called. Callers
// typically run this in its own goroutine alongside the SocketPoll loop.
func (w *Watcher) Run() error {
	if w.fsw == nil {
		<-w.done
		return nil
	}
	for {
		select {
		case <-w.done:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) reload() {
	root, err := Load(w.path)
	if err != nil {
		// A malformed edit keeps the previous configuration live; the
		// parse error is dropped without being logged.
		return
	}

	w.mu.Lock()
	w.current = root
	fns := append([]ReloadFunc(nil), w.onReload...)
	w.mu.Unlock()

	for _, fn := range fns {
		_ = fn(root)
	}
}

// Stop terminates Run and releases the underlying inotify/kqueue handle.
func (w *Watcher) Stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
	if w.fsw != nil {
		w.fsw.Close()
	}
}
