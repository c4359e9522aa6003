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

package httpserver

import (
	"github.com/CollaboraOnline/online-sub004/broker"
	"github.com/CollaboraOnline/online-sub004/wopi"
)

// wopiStorage adapts one wopi.Client, bound to the WOPISrc and access
// token a particular browser session presented, to the narrow broker.Storage
// interface a DocumentBroker saves through. A fresh adapter is built per
// document the first time a client connects to it; the access token it
// captures is the one that created the broker; later sessions reuse the
// same broker without needing their own adapter.
type wopiStorage struct {
	client      *wopi.Client
	wopiSrc     string
	accessToken string
}

func newWopiStorage(client *wopi.Client, wopiSrc, accessToken string) broker.Storage {
	return &wopiStorage{client: client, wopiSrc: wopiSrc, accessToken: accessToken}
}

func (w *wopiStorage) PutContents(_ broker.Key, body []byte, lockToken string) error {
	return w.client.PutContents(w.wopiSrc, w.accessToken, body, lockToken)
}

func (w *wopiStorage) RefreshLock(_ broker.Key, lockToken string) error {
	return w.client.RefreshLock(w.wopiSrc, w.accessToken, lockToken)
}
