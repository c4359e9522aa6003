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

package wopi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	libctx "github.com/CollaboraOnline/online-sub004/context"
	liberr "github.com/CollaboraOnline/online-sub004/errors"
)

// FileInfo is the subset of the GET <wopi-src> JSON response the broker
// consumes.
type FileInfo struct {
	BaseFileName     string `json:"BaseFileName"`
	OwnerID          string `json:"OwnerId"`
	UserID           string `json:"UserId"`
	UserFriendlyName string `json:"UserFriendlyName"`
	UserExtraInfo    any    `json:"UserExtraInfo,omitempty"`
	Size             int64  `json:"Size"`
	LastModifiedTime string `json:"LastModifiedTime"`

	UserCanWrite bool `json:"UserCanWrite"`
	DisablePrint bool `json:"DisablePrint"`
	DisableExport bool `json:"DisableExport"`
	DisableCopy  bool `json:"DisableCopy"`

	WatermarkText string `json:"WatermarkText,omitempty"`

	SupportsLocks  bool `json:"SupportsLocks"`
	SupportsRename bool `json:"SupportsRename"`

	PostMessageOrigin       string `json:"PostMessageOrigin,omitempty"`
	EnableOwnerTermination  bool   `json:"EnableOwnerTermination"`
	HidePrintOption         bool   `json:"HidePrintOption"`
	HideSaveOption          bool   `json:"HideSaveOption"`
	HideExportOption        bool   `json:"HideExportOption"`
	TemplateSaveAs          bool   `json:"TemplateSaveAs"`
	TemplateSource          string `json:"TemplateSource,omitempty"`

	// Extra holds whatever top-level properties the host's CheckFileInfo
	// response carries beyond this struct's fixed fields - WOPI hosts
	// routinely add vendor-specific properties the protocol never
	// standardized. Populated by GetFileInfo; nil on a FileInfo built by
	// hand.
	Extra libctx.Config[string] `json:"-"`
}

// Client talks to one WOPI host, signing every request with a ProofKey and
// retrying transient failures with backoff through retryablehttp.
type Client struct {
	http  *retryablehttp.Client
	proof *ProofKey
}

// NewClient builds a Client with the default retry policy: up to maxRetries
// retries after the first attempt, with exponential backoff, matching the StorageTransient handling
// §7 specifies.
func NewClient(proof *ProofKey, maxRetries int, timeout time.Duration) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.HTTPClient.Timeout = timeout
	rc.Logger = log.New(io.Discard, "", 0)
	rc.CheckRetry = retryOnTransient

	return &Client{http: rc, proof: proof}
}

// retryOnTransient mirrors the §7 taxonomy: only network errors and 5xx
// other than 507 are retried; 4xx (conflict, auth) and 507 (disk-full) are
// surfaced immediately.
func retryOnTransient(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode >= 500 && resp.StatusCode != http.StatusInsufficientStorage {
		return true, nil
	}
	return false, nil
}

func (c *Client) sign(req *retryablehttp.Request, accessToken, uri string) error {
	ticks := TicksFromUnix(time.Now())
	sig, err := c.proof.Sign(accessToken, uri, ticks)
	if err != nil {
		return err
	}
	req.Header.Set("X-WOPI-Timestamp", fmt.Sprintf("%d", ticks))
	req.Header.Set("X-WOPI-Proof", sig)
	return nil
}

// GetFileInfo performs GET <wopiSrc> and decodes the JSON file descriptor.
func (c *Client) GetFileInfo(wopiSrc, accessToken string) (*FileInfo, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, wopiSrc+"?access_token="+accessToken, nil)
	if err != nil {
		return nil, liberr.New(liberr.CodeStorageTransient, "building file info request", err)
	}
	if err := c.sign(req, accessToken, wopiSrc); err != nil {
		return nil, liberr.New(liberr.CodeFatal, "signing proof", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, liberr.New(liberr.CodeStorageTransient, "GET file info", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, liberr.New(liberr.CodeProtocol, "reading file info", err)
	}

	var fi FileInfo
	if err := json.Unmarshal(body, &fi); err != nil {
		return nil, liberr.New(liberr.CodeProtocol, "decoding file info", err)
	}
	if extra, err := ExtraProperties(body); err == nil {
		fi.Extra = extra
	}
	return &fi, nil
}

// GetContents performs GET <wopiSrc>/contents and returns the raw bytes.
func (c *Client) GetContents(wopiSrc, accessToken string) ([]byte, error) {
	uri := wopiSrc + "/contents"
	req, err := retryablehttp.NewRequest(http.MethodGet, uri+"?access_token="+accessToken, nil)
	if err != nil {
		return nil, liberr.New(liberr.CodeStorageTransient, "building contents request", err)
	}
	if err := c.sign(req, accessToken, uri); err != nil {
		return nil, liberr.New(liberr.CodeFatal, "signing proof", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, liberr.New(liberr.CodeStorageTransient, "GET contents", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// PutContents uploads body via POST <wopiSrc>/contents with
// X-WOPI-Override: PUT, optionally carrying a lock token.
func (c *Client) PutContents(wopiSrc string, accessToken string, body []byte, lockToken string) error {
	req, err := retryablehttp.NewRequest(http.MethodPost, wopiSrc+"/contents?access_token="+accessToken, bytes.NewReader(body))
	if err != nil {
		return liberr.New(liberr.CodeStorageTransient, "building put-contents request", err)
	}
	req.Header.Set("X-WOPI-Override", "PUT")
	if lockToken != "" {
		req.Header.Set("X-WOPI-Lock", lockToken)
	}
	if err := c.sign(req, accessToken, wopiSrc+"/contents"); err != nil {
		return liberr.New(liberr.CodeFatal, "signing proof", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return liberr.New(liberr.CodeStorageTransient, "PUT contents", err)
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

// lockOp performs POST <wopiSrc> with X-WOPI-Override set to op and the
// given lock token, for LOCK/UNLOCK/REFRESH_LOCK.
func (c *Client) lockOp(op, wopiSrc, accessToken, lockToken string) error {
	req, err := retryablehttp.NewRequest(http.MethodPost, wopiSrc+"?access_token="+accessToken, nil)
	if err != nil {
		return liberr.New(liberr.CodeStorageTransient, "building "+op+" request", err)
	}
	req.Header.Set("X-WOPI-Override", op)
	req.Header.Set("X-WOPI-Lock", lockToken)
	if err := c.sign(req, accessToken, wopiSrc); err != nil {
		return liberr.New(liberr.CodeFatal, "signing proof", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return liberr.New(liberr.CodeStorageTransient, op, err)
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

func (c *Client) Lock(wopiSrc, accessToken, lockToken string) error {
	return c.lockOp("LOCK", wopiSrc, accessToken, lockToken)
}

func (c *Client) Unlock(wopiSrc, accessToken, lockToken string) error {
	return c.lockOp("UNLOCK", wopiSrc, accessToken, lockToken)
}

func (c *Client) RefreshLock(wopiSrc, accessToken, lockToken string) error {
	return c.lockOp("REFRESH_LOCK", wopiSrc, accessToken, lockToken)
}

// classifyStatus maps an HTTP status code onto the §7 error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 409 || status == 412:
		return liberr.New(liberr.CodeStorageConflict, "storage host reported a conflict", nil)
	case status == 401 || status == 403:
		return liberr.New(liberr.CodeStorageAuth, "storage host rejected the access token", nil)
	case status == 507:
		return liberr.New(liberr.CodeStorageDiskFull, "storage host is out of space", nil)
	case status >= 500:
		return liberr.New(liberr.CodeStorageTransient, fmt.Sprintf("storage host returned %d", status), nil)
	default:
		return liberr.Newf(liberr.CodeProtocol, nil, "unexpected storage status %d", status)
	}
}
