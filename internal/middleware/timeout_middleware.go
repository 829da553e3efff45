package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"event-planner-core/internal/transport/httpdto"
)

// TimeoutMiddleware bounds a request to d. When the handler has not written
// anything by the deadline, a 504 ROUTE_TIMEOUT envelope is emitted and any
// late handler output is discarded. A handler that already started writing is
// left alone.
func TimeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		guard := &timeoutWriter{ResponseWriter: c.Writer}
		c.Writer = guard
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		panicChan := make(chan interface{}, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicChan <- p
				}
			}()
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case p := <-panicChan:
			panic(p)
		case <-ctx.Done():
			if guard.markTimedOut() {
				w := guard.ResponseWriter
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusGatewayTimeout)
				_, _ = w.Write(timeoutBody())
				c.Abort()
			}
			<-done
		}
	}
}

func timeoutBody() []byte {
	return []byte(`{"success":false,"error":"request timed out","code":"` + httpdto.CodeRouteTimeout + `"}`)
}

// timeoutWriter serializes writes and drops everything a late handler
// produces after the timeout response went out.
type timeoutWriter struct {
	gin.ResponseWriter
	mu       sync.Mutex
	wrote    bool
	timedOut bool
}

func (w *timeoutWriter) markTimedOut() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wrote {
		return false
	}
	w.timedOut = true
	return true
}

func (w *timeoutWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return
	}
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timedOut {
		return len(b), nil
	}
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *timeoutWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}
