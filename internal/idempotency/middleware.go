package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"escrow-marketplace/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderKey is the request header carrying the client-chosen key.
const HeaderKey = "Idempotency-Key"

// HeaderReplayed marks a response served from the store.
const HeaderReplayed = "Idempotent-Replayed"

// lockTTL bounds how long a crashed request can hold its key.
const lockTTL = 2 * time.Minute

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Middleware replays responses for requests that repeat an Idempotency-Key on the same
// route from the same authenticated wallet. Requests without the header pass through. Server errors are not stored, so a
// retry re-executes the step. Store failures degrade to pass-through.
func Middleware(store Store, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderKey)
		if key == "" {
			c.Next()
			return
		}
		scoped := scopedKey(c, key)
		ctx := c.Request.Context()

		rec, err := store.Get(ctx, scoped)
		if err != nil {
			logger.Warn("Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if rec != nil {
			c.Header(HeaderReplayed, "true")
			c.Data(rec.Status, rec.ContentType, rec.Body)
			c.Abort()
			return
		}

		locked, err := store.Lock(ctx, scoped, lockTTL)
		if err != nil {
			logger.Warn("Idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !locked {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success":   false,
				"error":     "a request with this Idempotency-Key is still in progress",
				"retryable": true,
			})
			return
		}
		defer func() {
			if err := store.Unlock(context.WithoutCancel(ctx), scoped); err != nil {
				logger.Warn("Failed to release idempotency lock", zap.Error(err))
			}
		}()

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if w.Status() >= http.StatusInternalServerError {
			return
		}
		err = store.Save(context.WithoutCancel(ctx), scoped, Record{
			Status:      w.Status(),
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		}, ttl)
		if err != nil {
			logger.Warn("Failed to store idempotent response", zap.Error(err))
		}
	}
}

// scopedKey keys a stored response by route and, when authenticated, by wallet, so one
// caller's key never replays another caller's response.
func scopedKey(c *gin.Context, key string) string {
	scope := c.Request.Method + " " + c.FullPath()
	if wallet, ok := middleware.GetWalletFromContext(c); ok {
		scope += " " + wallet
	}
	return scope + " " + key
}
