package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// JoinPath joins route segments onto base, handling leading and trailing
// slashes. Query and fragment of base are kept.
func JoinPath(base string, paths ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	allPaths := append([]string{u.Path}, paths...)
	u.Path = path.Join(allPaths...)

	if len(paths) > 0 && strings.HasSuffix(paths[len(paths)-1], "/") {
		u.Path += "/"
	}

	return u.String(), nil
}

// AbsoluteURL returns route resolved against baseURL. An empty or unparsable
// baseURL yields the bare route, which browsers resolve against the page
// origin.
func AbsoluteURL(baseURL, route string) string {
	if baseURL == "" {
		return route
	}
	joined, err := JoinPath(baseURL, route)
	if err != nil {
		return route
	}
	return joined
}

// IsLocalPath reports whether p is a same-origin path: it starts with a
// single "/" and cannot be read as a scheme-relative or backslash URL.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	return !strings.ContainsAny(p, "\\\r\n")
}
