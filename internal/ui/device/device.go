// Package device classifies incoming requests as mobile or desktop and
// carries the result through the request context.
package device

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// DefaultBreakpoint is the viewport width (CSS px) below which a client is
// treated as mobile. It matches Tailwind's md breakpoint.
const DefaultBreakpoint = 768

// ViewportCookie carries the client's last reported viewport width.
const ViewportCookie = "vw"

// Class is the layout a request should get. The zero value is Desktop.
type Class int

const (
	Desktop Class = iota
	Mobile
)

func (c Class) String() string {
	if c == Mobile {
		return "mobile"
	}
	return "desktop"
}

// Source names the signal that decided a classification, for logging.
type Source string

const (
	SourceQuery     Source = "query"
	SourceCookie    Source = "cookie"
	SourceHint      Source = "client-hint"
	SourceUserAgent Source = "user-agent"
	SourceDefault   Source = "default"
)

var mobileUATokens = []string{
	"Mobi", "Android", "iPhone", "iPod", "Windows Phone", "BlackBerry", "Opera Mini", "IEMobile",
}

// Classify decides the device class of r. Precedence: ?device=, the vw
// cookie, the Sec-CH-UA-Mobile hint, then the User-Agent. A breakpoint <= 0
// uses DefaultBreakpoint.
func Classify(r *http.Request, breakpoint int) (Class, Source) {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}

	switch strings.ToLower(r.URL.Query().Get("device")) {
	case "mobile":
		return Mobile, SourceQuery
	case "desktop":
		return Desktop, SourceQuery
	}

	if c, err := r.Cookie(ViewportCookie); err == nil {
		if width, err := strconv.Atoi(c.Value); err == nil && width > 0 {
			if width < breakpoint {
				return Mobile, SourceCookie
			}
			return Desktop, SourceCookie
		}
	}

	switch r.Header.Get("Sec-CH-UA-Mobile") {
	case "?1":
		return Mobile, SourceHint
	case "?0":
		return Desktop, SourceHint
	}

	ua := r.UserAgent()
	for _, tok := range mobileUATokens {
		if strings.Contains(ua, tok) {
			return Mobile, SourceUserAgent
		}
	}
	return Desktop, SourceDefault
}

type ctxKey struct{}

// WithClass stores c in ctx.
func WithClass(ctx context.Context, c Class) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// ClassFrom returns the class stored in ctx, or Desktop.
func ClassFrom(ctx context.Context) Class {
	c, _ := ctx.Value(ctxKey{}).(Class)
	return c
}

// FromContext reads the request-scoped class; it satisfies
// layout.DeviceClassifier.
type FromContext struct{}

func (FromContext) IsMobile(ctx context.Context) bool {
	return ClassFrom(ctx) == Mobile
}

// Middleware classifies each request and stores the class in its context.
// The response varies on the inputs used.
func Middleware(breakpoint int, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := Classify(r, breakpoint)
		w.Header().Add("Vary", "Sec-CH-UA-Mobile, User-Agent, Cookie")
		w.Header().Set("Accept-CH", "Sec-CH-UA-Mobile")
		next.ServeHTTP(w, r.WithContext(WithClass(r.Context(), c)))
	})
}
