package browser

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/net/publicsuffix"
)

// ParseCookies parses a Cookie header style string ("k1=v1; k2=v2").
// Keys and values are trimmed. Pairs without "=" or with an empty key are
// skipped. Values may themselves contain "=".
func ParseCookies(raw string) []*http.Cookie {
	cookies := make([]*http.Cookie, 0)
	for _, pair := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:  key,
			Value: strings.TrimSpace(value),
		})
	}
	return cookies
}

// CookieParams scopes cookies to domain for the DevTools protocol.
func CookieParams(cookies []*http.Cookie, domain string) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: domain,
			Path:   "/",
		})
	}
	return params
}

// DefaultCookieDomain derives a cookie domain from a target URL: the
// registrable domain with a leading dot, so cookies cover every subdomain.
// IP addresses and hosts without a public suffix are returned as-is.
func DefaultCookieDomain(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	if net.ParseIP(host) != nil {
		return host
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return "." + registrable
}
