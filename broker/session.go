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

import "github.com/google/uuid"

// SessionID is a process-unique identifier for one ClientSession (one
// browser tab).
type SessionID string

// NewSessionID mints an opaque, collision-resistant session id.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// ClientSession represents one browser tab's participation in a document.
// It is owned by exactly one DocumentBroker and is destroyed on WebSocket
// close or broker teardown.
type ClientSession struct {
	ID       SessionID
	ViewID   int
	ReadOnly bool
	UserID   string
	UserName string
	Watermark string

	Zoom int
	Part int
	Lang string

	outbox chan []byte
}

// NewClientSession constructs a session with a buffered outbound queue; the
// writer goroutine httpserver starts per connection drains it onto the
// session's WebSocket.
func NewClientSession(userID, userName string, readOnly bool) *ClientSession {
	return &ClientSession{
		ID:       NewSessionID(),
		UserID:   userID,
		UserName: userName,
		ReadOnly: readOnly,
		outbox:   make(chan []byte, 256),
	}
}

// Enqueue queues msg for delivery to this session's socket. It never
// blocks: a full outbox drops the oldest message rather than stalling the
// broker's single dispatch thread, matching the non-blocking-handler
// invariant the socket runtime requires of every caller in its path.
func (s *ClientSession) Enqueue(msg []byte) {
	select {
	case s.outbox <- msg:
	default:
		select {
		case <-s.outbox:
		default:
		}
		select {
		case s.outbox <- msg:
		default:
		}
	}
}

// Outbox exposes the channel a WebSocket writer goroutine drains.
func (s *ClientSession) Outbox() <-chan []byte { return s.outbox }
