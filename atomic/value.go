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

package atomic

import (
	"reflect"
	"sync"
)

// Value is a generic, concurrency-safe single-value cell. Unlike sync/atomic's
// Value, it never panics on a type change across Store calls - every caller
// in this codebase stores exactly one concrete type per Value instance, so
// the relaxed behaviour only ever helps during zero-value initialisation.
type Value[T any] interface {
	Load() T
	Store(v T)
	Swap(new T) (old T)
	CompareAndSwap(old, new T) (swapped bool)
}

type typedValue[T any] struct {
	mu  sync.RWMutex
	v   T
	set bool
}

// NewValue returns an empty typed Value. Load before the first Store returns
// the zero value of T.
func NewValue[T any]() Value[T] {
	return &typedValue[T]{}
}

func (t *typedValue[T]) Load() T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.v
}

func (t *typedValue[T]) Store(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.v = v
	t.set = true
}

func (t *typedValue[T]) Swap(new T) (old T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old = t.v
	t.v = new
	t.set = true
	return old
}

func (t *typedValue[T]) CompareAndSwap(old, new T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !reflect.DeepEqual(t.v, old) {
		return false
	}
	t.v = new
	t.set = true
	return true
}
