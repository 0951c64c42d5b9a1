package auth

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Jar is a cookie jar that also remembers every cookie it accepted with its
// attributes. A plain jar only hands back name and value for one URL, which
// loses cookies scoped to other paths.
type Jar struct {
	inner *cookiejar.Jar

	mu      sync.Mutex
	cookies map[cookieKey]*http.Cookie
}

type cookieKey struct {
	name   string
	domain string
	path   string
}

// NewJar creates an empty jar
func NewJar() (*Jar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Jar{
		inner:   inner,
		cookies: make(map[cookieKey]*http.Cookie),
	}, nil
}

// SetCookies implements http.CookieJar
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	host := strings.ToLower(u.Hostname())
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		if c.Domain != "" && !domainMatch(host, c.Domain) {
			continue
		}

		kept := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			Expires:  c.Expires,
		}
		if kept.Path == "" || kept.Path[0] != '/' {
			kept.Path = defaultPath(u.Path)
		}

		domain := kept.Domain
		if domain == "" {
			domain = host
		}
		key := cookieKey{name: c.Name, domain: domain, path: kept.Path}

		switch {
		case c.MaxAge < 0:
			delete(j.cookies, key)
			continue
		case c.MaxAge > 0:
			kept.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		if !kept.Expires.IsZero() && !kept.Expires.After(now) {
			delete(j.cookies, key)
			continue
		}

		j.cookies[key] = kept
	}
}

// Cookies implements http.CookieJar
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// All returns the unexpired cookies the jar accepted, with their attributes,
// ordered by path, then name
func (j *Jar) All() []*http.Cookie {
	now := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	all := make([]*http.Cookie, 0, len(j.cookies))
	for key, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			delete(j.cookies, key)
			continue
		}
		copied := *c
		all = append(all, &copied)
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].Path != all[b].Path {
			return all[a].Path < all[b].Path
		}
		return all[a].Name < all[b].Name
	})
	return all
}

// defaultPath is the cookie path used when Set-Cookie carries none: the
// directory of the request path
func defaultPath(path string) string {
	if path == "" || path[0] != '/' {
		return "/"
	}

	i := strings.LastIndex(path, "/")
	if i == 0 {
		return "/"
	}
	return path[:i]
}

func domainMatch(host, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	return host == domain || strings.HasSuffix(host, "."+domain)
}
