package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/canvas/internal/middleware"
	"github.com/persistorai/canvas/internal/session"
	"github.com/persistorai/canvas/internal/ws"
)

// wsHandler upgrades the request and runs one canvas session for the
// lifetime of the connection.
func wsHandler(appCtx context.Context, deps *RouterDeps) gin.HandlerFunc {
	log := deps.Log

	return func(c *gin.Context) {
		if deps.Hub.Full() {
			respondError(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "session limit reached")
			return
		}

		// CORS origins are reused as WebSocket origin patterns. The config
		// validator ensures these are safe host patterns (no wildcards etc.).
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			OriginPatterns:       deps.CORSOrigins,
			CompressionMode:      websocket.CompressionContextTakeover,
			CompressionThreshold: 128,
		})
		if err != nil {
			log.WithError(err).Error("websocket accept failed")

			return
		}

		client := ws.NewClient(deps.Hub, conn)
		deps.Hub.Register(client)

		sess := session.New(deps.Sessions, client)
		defer sess.Close()

		log.WithFields(logrus.Fields{
			"session_id": client.SessionID,
			"principal":  c.GetString(middleware.PrincipalKey),
			"request_id": c.GetString(middleware.RequestIDKey),
		}).Debug("canvas session opened")

		// Derive a context that cancels when either the server shuts down or the request ends.
		wsCtx, wsCancel := context.WithCancel(appCtx)
		go func() {
			select {
			case <-c.Request.Context().Done():
				wsCancel()
			case <-wsCtx.Done():
			}
		}()

		go client.WritePump(wsCtx)
		client.ReadPump(wsCtx, sess)
		wsCancel()
	}
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		if p := c.GetString(middleware.PrincipalKey); p != "" {
			fields["principal"] = p
		}
		log.WithFields(fields).Info("request")
	}
}
