package authcore

import (
	"context"
	"strings"
	"unicode/utf8"
)

// maxUserAgentBytes caps what is stored on a session record.
const maxUserAgentBytes = 512

type clientKey struct{}

// clientInfo is the request metadata a caller may attach for session records
// and audit entries.
type clientInfo struct {
	ip        string
	userAgent string
}

func clientFrom(ctx context.Context) clientInfo {
	if ctx == nil {
		return clientInfo{}
	}
	info, _ := ctx.Value(clientKey{}).(clientInfo)
	return info
}

// WithClientIP attaches the caller's IP address to ctx. The Service records
// it on new sessions and in audit metadata.
func WithClientIP(ctx context.Context, ip string) context.Context {
	info := clientFrom(ctx)
	info.ip = strings.TrimSpace(ip)
	return context.WithValue(ctx, clientKey{}, info)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Values longer
// than 512 bytes are cut at a rune boundary.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	info := clientFrom(ctx)
	info.userAgent = truncateUTF8(strings.TrimSpace(userAgent), maxUserAgentBytes)
	return context.WithValue(ctx, clientKey{}, info)
}

func clientIPFromContext(ctx context.Context) string {
	return clientFrom(ctx).ip
}

func userAgentFromContext(ctx context.Context) string {
	return clientFrom(ctx).userAgent
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
