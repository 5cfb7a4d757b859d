package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// apiCSP locks down anything a browser might render from the API. Captcha
// images are fetched as data URLs or direct PNG responses, neither of which
// needs script or frame access.
const apiCSP = "default-src 'none'; img-src 'self' data:; frame-ancestors 'none'"

// SecurityOptions configures SecurityHeaders.
//
// Responses under SensitivePrefixes carry applicant data (tracking ID, date of
// birth, captcha answers) and are marked "no-store". Responses under
// RevalidatePrefixes are private to the desk operator and may be cached only
// if revalidated, which keeps the list ETag useful.
type SecurityOptions struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration // defaults to 180 days

	SensitivePrefixes  []string
	RevalidatePrefixes []string

	EnablePolicy bool // Permissions-Policy and CSP
}

// SecurityHeaders attaches hardening headers to every response. HSTS is sent
// only when enabled and the request arrived over HTTPS. Handlers may still
// override Cache-Control after this middleware runs.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int64(opt.HSTSMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = int64((180 * 24 * time.Hour) / time.Second)
	}
	hsts := "max-age=" + strconv.FormatInt(maxAge, 10) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("Content-Security-Policy", apiCSP)
		}

		path := c.Request.URL.Path
		switch {
		case hasAnyPrefix(path, opt.SensitivePrefixes):
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		case hasAnyPrefix(path, opt.RevalidatePrefixes):
			h.Set("Cache-Control", "private, no-cache")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		exposeHeader(h, requestIDHeader)
		c.Next()
	}
}

// exposeHeader appends name to Access-Control-Expose-Headers when the
// response already carries it and it is not listed yet.
func exposeHeader(h http.Header, name string) {
	if h.Get(name) == "" {
		return
	}
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	if cur == "" {
		h.Set(hdr, name)
		return
	}
	for _, part := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}
	h.Set(hdr, cur+", "+name)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS trusts X-Forwarded-Proto from the fronting proxy.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
