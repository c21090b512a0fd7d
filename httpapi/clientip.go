package httpapi

import (
	"net"
	"net/http"
)

// clientIP returns the host part of RemoteAddr. Proxy headers are honored
// only when the router runs chi's RealIP middleware, which rewrites
// RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
