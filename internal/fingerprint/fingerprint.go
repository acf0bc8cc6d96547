package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Sum computes the content fingerprint of a byte buffer: sha256 over the
// exact bytes, rendered as 64 lowercase hex characters. The digest is the
// system's sole integrity guarantee, so it must be byte-for-byte
// deterministic.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

const unknown = "unknown"

// ClientContext is the capture context recorded alongside an upload.
type ClientContext struct {
	IP        string
	UserAgent string
}

// FromHeaders extracts the client IP and user agent from inbound request
// headers. X-Forwarded-For wins over X-Real-Ip; the first entry of a
// comma-separated forwarded chain is taken. Missing values fall back to
// the literal "unknown".
func FromHeaders(h http.Header) ClientContext {
	ctx := ClientContext{IP: unknown, UserAgent: unknown}

	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		ctx.IP = strings.TrimSpace(fwd)
	} else if real := h.Get("X-Real-Ip"); real != "" {
		ctx.IP = strings.TrimSpace(real)
	}

	if ua := h.Get("User-Agent"); ua != "" {
		ctx.UserAgent = ua
	}
	return ctx
}
