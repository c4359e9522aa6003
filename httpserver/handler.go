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
	"encoding/xml"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CollaboraOnline/online-sub004/admin"
	"github.com/CollaboraOnline/online-sub004/broker"
	"github.com/CollaboraOnline/online-sub004/childpool"
	"github.com/CollaboraOnline/online-sub004/config"
	"github.com/CollaboraOnline/online-sub004/logger"
	"github.com/CollaboraOnline/online-sub004/socket"
	"github.com/CollaboraOnline/online-sub004/wopi"
	"github.com/CollaboraOnline/online-sub004/wsframe"
)

// tileCacheBudgetBytes bounds the per-document tile cache created for a
// freshly opened DocumentBroker; per-document tuning of this value is not
// yet exposed in the configuration schema.
const tileCacheBudgetBytes = 64 * 1024 * 1024

// discoveryDoc is the minimal wopi-discovery document the external-
// interfaces section's discovery endpoint returns: one net-zone advertising
// the editing action this Gateway serves.
type discoveryDoc struct {
	XMLName xml.Name `xml:"wopi-discovery"`
	NetZone struct {
		Name string `xml:"name,attr"`
		App  struct {
			Name   string `xml:"name,attr"`
			Action struct {
				Name   string `xml:"name,attr"`
				Ext    string `xml:"ext,attr"`
				URLSrc string `xml:"urlsrc,attr"`
			} `xml:"action"`
		} `xml:"app"`
	} `xml:"net-zone"`
}

// Deps bundles everything NewRouter needs to build the Gateway's route
// table. Every field is required.
type Deps struct {
	Config  *config.Root
	Log     logger.Logger
	Metrics *admin.Metrics
	Reg     *prometheus.Registry
	Brokers *broker.Registry
	WopiCli *wopi.Client
	Allow   *wopi.AllowList
	Poll    *socket.Poll
	Workers *childpool.Pool
}

// NewRouter builds the gin Engine the Gateway serves: WOPI discovery, the
// WebSocket editing upgrade, an admin status probe, and the Prometheus
// scrape endpoint, all mounted under config.Net.ServiceRoot.
func NewRouter(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(d.Log))

	root := d.Config.Net.ServiceRoot
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	grp := r.Group(root)

	grp.GET("hosting/discovery", discoveryHandler(d))
	grp.GET("lool/ws", wsUpgradeHandler(d))
	grp.GET("metrics", gin.WrapH(promhttp.HandlerFor(d.Reg, promhttp.HandlerOpts{})))
	grp.GET("admin/status", adminStatusHandler(d))

	return r
}

func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request", logger.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

func discoveryHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var doc discoveryDoc
		doc.NetZone.Name = "external-https"
		doc.NetZone.App.Name = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		doc.NetZone.App.Action.Name = "edit"
		doc.NetZone.App.Action.Ext = "docx"
		doc.NetZone.App.Action.URLSrc = "https://" + c.Request.Host + d.Config.Net.ServiceRoot + "loleaflet/edit"

		body, err := xml.MarshalIndent(doc, "", "  ")
		if err != nil {
			c.String(http.StatusInternalServerError, "marshalling discovery document")
			return
		}
		c.Data(http.StatusOK, "text/xml; charset=utf-8", append([]byte(xml.Header), body...))
	}
}

// wsUpgradeHandler validates and completes the WebSocket handshake for one
// editing session, then hands the hijacked connection to the Gateway's
// socket.Poll loop under a wsframe.Conn bound to the document's broker.
func wsUpgradeHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		acceptKey, err := wsframe.ValidateUpgrade(c.Request.Header)
		if err != nil {
			c.String(http.StatusBadRequest, "not a websocket upgrade: %v", err)
			return
		}

		wopiSrc := c.Query("WOPISrc")
		accessToken := c.Query("access_token")
		if wopiSrc == "" {
			c.String(http.StatusBadRequest, "missing WOPISrc")
			return
		}

		key, err := broker.KeyFromWopiSrc(wopiSrc)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid WOPISrc: %v", err)
			return
		}
		srcURL, err := url.Parse(wopiSrc)
		if err != nil {
			c.String(http.StatusBadRequest, "invalid WOPISrc: %v", err)
			return
		}
		if !d.Allow.Allowed(srcURL.Host) {
			c.String(http.StatusForbidden, "storage host not allow-listed")
			return
		}

		docBroker := d.Brokers.GetOrCreate(key, func() *broker.DocumentBroker {
			if d.Metrics != nil {
				d.Metrics.DocumentsLive.Inc()
			}
			storage := newWopiStorage(d.WopiCli, wopiSrc, accessToken)
			b := broker.New(key, wopiSrc, storage, tileCacheBudgetBytes)
			d.Workers.Claim(b)
			return b
		})

		fileInfo, err := d.WopiCli.GetFileInfo(wopiSrc, accessToken)
		if err != nil {
			c.String(http.StatusBadGateway, "checkfileinfo: %v", err)
			return
		}

		hijacker, ok := c.Writer.(http.Hijacker)
		if !ok {
			c.String(http.StatusInternalServerError, "connection does not support hijacking")
			return
		}
		conn, rw, err := hijacker.Hijack()
		if err != nil {
			c.String(http.StatusInternalServerError, "hijack: %v", err)
			return
		}
		if _, err := rw.Write(wsframe.UpgradeResponse(acceptKey)); err != nil {
			_ = conn.Close()
			return
		}
		if err := rw.Flush(); err != nil {
			_ = conn.Close()
			return
		}

		session := broker.NewClientSession(fileInfo.UserID, fileInfo.UserFriendlyName, !fileInfo.UserCanWrite)
		docBroker.AddSession(session)
		if d.Metrics != nil {
			d.Metrics.SessionsLive.Inc()
		}

		wsConn := wsframe.NewConn(conn, func(_ wsframe.Opcode, payload []byte) {
			_ = docBroker.DispatchClientMessage(session.ID, payload)
		})

		sock, err := socket.New(conn, wsConn)
		if err != nil {
			_ = conn.Close()
			return
		}

		go func() {
			for msg := range session.Outbox() {
				m := msg
				d.Poll.PostCallback(func() { wsConn.SendBinary(m) })
			}
		}()

		d.Poll.InsertSocket(sock)
	}
}

func adminStatusHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !d.Config.Admin.Enable {
			c.String(http.StatusNotFound, "admin console disabled")
			return
		}
		_, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="admin"`)
			c.String(http.StatusUnauthorized, "authentication required")
			return
		}
		valid, err := admin.VerifyPassword(password, d.Config.Admin.SecurePassword)
		if err != nil || !valid {
			c.String(http.StatusUnauthorized, "invalid credentials")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
