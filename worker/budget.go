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

// Package worker runs inside the sandboxed child process and drives its
// render loop: pull a tile request off the pipe from the Gateway, render it
// through the native engine, push the bytes back, repeat. The render loop
// owns the process's single main thread and renders every tile of one
// request before it reads the next message; RenderBudget paces those tiles.
package worker

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RenderBudget bounds how many tiles the render loop may produce per
// second. A burst of renderBurst
// tiles is allowed up front so a single large paint doesn't stall on the
// very first tile.
type RenderBudget struct {
	limiter *rate.Limiter
}

// NewRenderBudget builds a budget allowing tilesPerSecond sustained tile
// renders with a burst of renderBurst.
func NewRenderBudget(tilesPerSecond float64, renderBurst int) *RenderBudget {
	return &RenderBudget{limiter: rate.NewLimiter(rate.Limit(tilesPerSecond), renderBurst)}
}

// Allow reports whether the next tile may be rendered immediately, without
// blocking. When it returns false, cmd/worker sleeps briefly and asks again.
func (b *RenderBudget) Allow() bool {
	return b.limiter.Allow()
}

// Wait blocks until the budget admits one more tile or ctx is done,
// whichever comes first. Used on the render loop's own goroutine, never
// from a socket.Handler callback.
func (b *RenderBudget) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// YieldInterval is the longest cmd/worker waits on the budget while
// rendering one tile request; once it has passed, the remaining tiles of
// that request render without waiting. The pipe is not read in between.
const YieldInterval = 50 * time.Millisecond
