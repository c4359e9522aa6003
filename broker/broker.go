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

import (
	"fmt"
	"sync"
	"time"

	liberr "github.com/CollaboraOnline/online-sub004/errors"
	"github.com/CollaboraOnline/online-sub004/tilecache"
)

// tileRenderTimeout bounds how long DispatchClientMessage's tile
// short-circuit waits for the Worker to answer a render request before
// giving up and reporting a render failure to the asking session.
const tileRenderTimeout = 10 * time.Second

// State is one node of the DocumentBroker lifecycle.
type State int

const (
	Loading State = iota
	Live
	Saving
	Dead
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Live:
		return "live"
	case Saving:
		return "saving"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Storage is the subset of the WOPI client the broker needs to save and
// refresh locks. It is satisfied by wopi.Client; broker stays independent
// of the HTTP transport so it can be tested with a fake.
type Storage interface {
	PutContents(key Key, body []byte, lockToken string) error
	RefreshLock(key Key, lockToken string) error
}

// DocumentBroker owns one document: its sessions, its Worker, and the save
// cycle that keeps it durable in storage.
type DocumentBroker struct {
	Key       Key
	PublicURI string
	JailDir   string

	LoadedAt      time.Time
	LastActivity  time.Time
	LastSaveAt    time.Time
	Modified      bool

	mu       sync.Mutex
	state    State
	sessions map[SessionID]*ClientSession
	worker   *WorkerHandle
	tiles    *tilecache.Cache
	saving   bool
	lockTok  string

	storage Storage

	nextViewID int

	// pending holds early messages received while Loading, flushed once
	// the broker transitions to Live.
	pending [][]byte

	// tileWaiters correlates an in-flight "tile" request sent to the
	// Worker with the goroutine blocked in renderTile waiting for the
	// matching "tile: <descriptor>" response.
	tileWaiters map[tilecache.Key]chan tileResult

	// saveWaiter is the single in-flight "save" request's response
	// channel; Save/AutoSaveCheck already serialise saves with b.saving,
	// so there is never more than one at a time.
	saveWaiter chan []byte
}

type tileResult struct {
	bytes []byte
	err   error
}

// New constructs a broker in the Loading state for key, bound to storage
// for its save cycle and a byte-budgeted tile cache.
func New(key Key, publicURI string, storage Storage, tileCacheBudget int64) *DocumentBroker {
	return &DocumentBroker{
		Key:       key,
		PublicURI: publicURI,
		LoadedAt:  time.Now(),
		state:     Loading,
		sessions:  make(map[SessionID]*ClientSession),
		tiles:     tilecache.New(tileCacheBudget),
		storage:   storage,
	}
}

// State returns the current lifecycle state.
func (b *DocumentBroker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Tiles exposes the per-document tile cache for the gateway's tile-request
// dispatch path.
func (b *DocumentBroker) Tiles() *tilecache.Cache { return b.tiles }

// AddSession attaches session, assigning it the next view id. Messages sent
// before the Worker reports "loaded" are queued and replayed once Live.
func (b *DocumentBroker) AddSession(s *ClientSession) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextViewID++
	s.ViewID = b.nextViewID
	b.sessions[s.ID] = s
	b.LastActivity = time.Now()

	b.broadcastLocked(joinedNotice(s), s.ID)
}

// RemoveSession detaches a session. If it was the last writer with
// unsaved changes, the caller should invoke Save before the broker is
// allowed to reach Dead - RemoveSession reports whether that condition
// holds so the gateway can decide.
func (b *DocumentBroker) RemoveSession(id SessionID) (needsSave bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[id]
	if !ok {
		return false
	}
	delete(b.sessions, id)
	b.broadcastLocked(leftNotice(s), "")

	return b.Modified && len(b.sessions) == 0
}

// SessionCount reports the number of attached sessions, for teardown and
// admin use.
func (b *DocumentBroker) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// SetWorker records the Worker handle once the Spawner has forked and the
// Worker reports ready, and transitions Loading to Live.
func (b *DocumentBroker) SetWorker(w *WorkerHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.worker = w
	if b.state == Loading {
		b.state = Live
		pending := b.pending
		b.pending = nil
		for _, msg := range pending {
			_ = b.worker.Send(msg)
		}
	}
}

// Worker returns the current Worker handle, or nil before loading
// completes.
func (b *DocumentBroker) Worker() *WorkerHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.worker
}

// DispatchClientMessage routes msg from session to the Worker, queuing it
// if still Loading. "tile"/"tilecombine" requests short-circuit into the
// per-document tile cache instead: a cache hit never reaches the Worker at
// all, and a miss is coalesced so two sessions asking for the same tile at
// once produce exactly one render.
func (b *DocumentBroker) DispatchClientMessage(from SessionID, msg []byte) error {
	cmd, rest := splitCommand(msg)
	if cmd == "tile" || cmd == "tilecombine" {
		b.mu.Lock()
		b.LastActivity = time.Now()
		b.mu.Unlock()
		return b.dispatchTileRequest(from, cmd, rest)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.LastActivity = time.Now()

	if b.state == Loading || b.worker == nil {
		b.pending = append(b.pending, msg)
		return nil
	}
	return b.worker.Send(msg)
}

// dispatchTileRequest parses a "tile"/"tilecombine" command into its
// Descriptors and fetches each through the tile cache concurrently, so one
// slow tile in a tilecombine batch does not hold up the rest.
func (b *DocumentBroker) dispatchTileRequest(from SessionID, cmd, rest string) error {
	descs, err := tilecache.ParseTileRequest(cmd == "tilecombine", rest)
	if err != nil {
		werr := liberr.Newf(liberr.CodeProtocol, err, "broker: parsing %s request", cmd)
		b.replyTo(from, []byte(fmt.Sprintf("error: cmd=%s kind=%s", cmd, werr.Code().ErrorKind())))
		return werr
	}

	for _, d := range descs {
		d := d
		go b.fetchTile(from, d)
	}
	return nil
}

func (b *DocumentBroker) fetchTile(from SessionID, d tilecache.Descriptor) {
	bitmap, err := b.tiles.Fetch(d.Key, d.Version, b.renderTile)
	if err != nil {
		b.replyTo(from, []byte("error: cmd=tile kind=failed"))
		return
	}
	header := "tile: " + d.Key.String() + "\n"
	b.replyTo(from, append([]byte(header), bitmap...))
}

func (b *DocumentBroker) replyTo(to SessionID, msg []byte) {
	b.mu.Lock()
	sess, ok := b.sessions[to]
	b.mu.Unlock()
	if ok {
		sess.Enqueue(msg)
	}
}

// renderTile is the tilecache.Render callback: it asks the Worker to
// render k and blocks until DeliverTileResult answers or the request times
// out. The tile cache's singleflight group guarantees this only runs once
// per Key while a render is outstanding, even with several sessions asking
// for the same tile.
func (b *DocumentBroker) renderTile(k tilecache.Key) ([]byte, error) {
	b.mu.Lock()
	if b.worker == nil {
		b.mu.Unlock()
		return nil, liberr.New(liberr.CodeRenderFailure, "broker: no worker attached", nil)
	}
	if b.tileWaiters == nil {
		b.tileWaiters = make(map[tilecache.Key]chan tileResult)
	}
	ch := make(chan tileResult, 1)
	b.tileWaiters[k] = ch
	worker := b.worker
	b.mu.Unlock()

	if err := worker.Send([]byte("tile " + k.String())); err != nil {
		b.mu.Lock()
		delete(b.tileWaiters, k)
		b.mu.Unlock()
		return nil, liberr.Newf(liberr.CodeRenderFailure, err, "broker: sending tile request to worker")
	}

	select {
	case res := <-ch:
		return res.bytes, res.err
	case <-time.After(tileRenderTimeout):
		b.mu.Lock()
		delete(b.tileWaiters, k)
		b.mu.Unlock()
		return nil, liberr.New(liberr.CodeRenderFailure, "broker: tile render timed out", nil)
	}
}

// DeliverTileResult fulfils the in-flight render request for k, if any,
// with the bitmap the Worker just sent back. A result with no matching
// waiter is stale - the cache already resolved that Key from another
// in-flight fetch - and is dropped.
func (b *DocumentBroker) DeliverTileResult(k tilecache.Key, bitmap []byte) {
	b.mu.Lock()
	ch, ok := b.tileWaiters[k]
	if ok {
		delete(b.tileWaiters, k)
	}
	b.mu.Unlock()
	if ok {
		ch <- tileResult{bytes: bitmap}
	}
}

// RequestSave asks the attached Worker to serialise the document and
// blocks for its answer, for use as the serialize callback AutoSaveCheck
// and an explicit "save" client command both need. It returns nil if no
// Worker is attached or the request times out.
func (b *DocumentBroker) RequestSave() []byte {
	b.mu.Lock()
	if b.worker == nil {
		b.mu.Unlock()
		return nil
	}
	ch := make(chan []byte, 1)
	b.saveWaiter = ch
	worker := b.worker
	b.mu.Unlock()

	if err := worker.Send([]byte("save")); err != nil {
		return nil
	}

	select {
	case body := <-ch:
		return body
	case <-time.After(tileRenderTimeout):
		return nil
	}
}

// DeliverSaveResult fulfils the in-flight RequestSave call, if any, with
// the serialised bytes the Worker just sent back.
func (b *DocumentBroker) DeliverSaveResult(body []byte) {
	b.mu.Lock()
	ch := b.saveWaiter
	b.saveWaiter = nil
	b.mu.Unlock()
	if ch != nil {
		ch <- body
	}
}

// DispatchWorkerMessage is invoked by the gateway's pipe handler for every
// message the Worker sends. With broadcast set it goes to every session;
// otherwise only to the session whose view id equals destViewID.
func (b *DocumentBroker) DispatchWorkerMessage(destViewID int, broadcast bool, msg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if broadcast {
		for _, s := range b.sessions {
			s.Enqueue(msg)
		}
		return
	}
	for _, s := range b.sessions {
		if s.ViewID == destViewID {
			s.Enqueue(msg)
			return
		}
	}
}

func (b *DocumentBroker) broadcastLocked(msg []byte, except SessionID) {
	for id, s := range b.sessions {
		if id == except {
			continue
		}
		s.Enqueue(msg)
	}
}

// Save transitions the broker to Saving, asks the Worker to serialise
// (represented here by the caller supplying the already-serialised bytes,
// since the render library is out of scope), and uploads through storage.
// Only one save may be in flight at a time.
func (b *DocumentBroker) Save(serialized []byte, force, isAutosave, isExitSave bool) error {
	b.mu.Lock()
	if b.saving {
		b.mu.Unlock()
		return nil
	}
	b.saving = true
	b.state = Saving
	lock := b.lockTok
	key := b.Key
	b.mu.Unlock()

	err := b.storage.PutContents(key, serialized, lock)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.saving = false

	if err != nil {
		code := liberr.Of(err)
		if code == liberr.CodeStorageTransient {
			// The state returns to Live at once; the caller decides on
			// retry with backoff.
			b.state = Live
			return err
		}
		b.state = Dead
		return err
	}

	b.LastSaveAt = time.Now()
	b.Modified = false
	b.state = Live
	return nil
}

// AutoSaveCheck invokes Save if the document has unsaved changes and has
// been idle at least idleSecs.
func (b *DocumentBroker) AutoSaveCheck(now time.Time, idleSecs int, serialize func() []byte) error {
	b.mu.Lock()
	modified := b.Modified
	idle := now.Sub(b.LastActivity) >= time.Duration(idleSecs)*time.Second
	b.mu.Unlock()

	if !modified || !idle {
		return nil
	}
	return b.Save(serialize(), false, true, false)
}

// MarkWorkerDead transitions the broker to Dead following a Worker crash
// and returns the sessions that must be closed with a reason code.
func (b *DocumentBroker) MarkWorkerDead() []*ClientSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Dead
	sessions := make([]*ClientSession, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

func joinedNotice(s *ClientSession) []byte {
	return []byte("participant: joined id=" + string(s.ID))
}

func leftNotice(s *ClientSession) []byte {
	return []byte("participant: left id=" + string(s.ID))
}
