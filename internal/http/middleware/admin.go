package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAdminPIN carries the desk PIN on admin routes.
const HeaderAdminPIN = "X-Admin-PIN"

const ctxKeyAdmin = "admin"

// AdminPIN gates a route group behind a static PIN. It only separates the
// operator desk from the public form; it is not an authentication scheme.
func AdminPIN(pin string) gin.HandlerFunc {
	want := []byte(pin)
	return func(c *gin.Context) {
		got := []byte(strings.TrimSpace(c.GetHeader(HeaderAdminPIN)))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": requestIDOf(c),
				"code":       "unauthorized",
				"message":    "invalid admin PIN",
			})
			return
		}
		c.Set(ctxKeyAdmin, true)
		c.Next()
	}
}

// IsAdmin reports whether AdminPIN accepted this request.
func IsAdmin(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyAdmin)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
