package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var errServerStatus = errors.New("server error")

// Middleware records a timer and a 5xx error rate per matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		name := fmt.Sprintf("http %s %s", c.Request.Method, route)

		m.Since(name, start)

		var err error
		if c.Writer.Status() >= http.StatusInternalServerError {
			err = errServerStatus
		}
		m.RecordOutcome(name, err)
	}
}
