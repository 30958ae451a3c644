package document

import (
	"net/url"
	"path/filepath"
	"strings"
)

// PathFromURI converts a file:// URI to a slash-separated path. Anything
// that is not a file URI is returned unchanged, so opaque keys like
// "a.txt" work as their own path.
func PathFromURI(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	p := u.Path
	// file:///C:/x on Windows
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return p
}

// URIFromPath converts a file path to a file:// URI
func URIFromPath(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
