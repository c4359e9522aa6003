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

// Map is a generic, concurrency-safe map keyed by a comparable type K holding
// values of type V. It wraps sync.Map and adds a type assertion at every read
// so a caller can never observe a value of the wrong type.
type Map[K comparable, V any] interface {
	Load(key K) (value V, ok bool)
	Store(key K, value V)
	LoadOrStore(key K, value V) (actual V, loaded bool)
	LoadAndDelete(key K) (value V, loaded bool)
	Delete(key K)
	CompareAndDelete(key K, old V) bool
	Range(f func(key K, value V) bool)
	Len() int
}

type typedMap[K comparable, V any] struct {
	m sync.Map
	n int64
}

// NewMap returns an empty Map.
func NewMap[K comparable, V any]() Map[K, V] {
	return &typedMap[K, V]{}
}

func cast[V any](src any) (v V, ok bool) {
	if src == nil {
		return v, false
	}
	if reflect.DeepEqual(src, v) {
		if _, k := src.(V); k {
			return src.(V), true
		}
	}
	v, ok = src.(V)
	return v, ok
}

func (t *typedMap[K, V]) Load(key K) (V, bool) {
	v, ok := t.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return cast[V](v)
}

func (t *typedMap[K, V]) Store(key K, value V) {
	t.m.Store(key, value)
}

func (t *typedMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	a, loaded := t.m.LoadOrStore(key, value)
	v, _ := cast[V](a)
	return v, loaded
}

func (t *typedMap[K, V]) LoadAndDelete(key K) (V, bool) {
	a, loaded := t.m.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	v, _ := cast[V](a)
	return v, true
}

func (t *typedMap[K, V]) Delete(key K) {
	t.m.Delete(key)
}

func (t *typedMap[K, V]) CompareAndDelete(key K, old V) bool {
	return t.m.CompareAndDelete(key, old)
}

func (t *typedMap[K, V]) Range(f func(key K, value V) bool) {
	t.m.Range(func(k, v any) bool {
		tv, ok := cast[V](v)
		if !ok {
			return true
		}
		tk, ok := k.(K)
		if !ok {
			return true
		}
		return f(tk, tv)
	})
}

func (t *typedMap[K, V]) Len() int {
	n := 0
	t.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
