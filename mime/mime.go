// Package mime resolves short content type tokens and holds the table of
// structured body codecs used for content negotiation.
package mime

import (
	stdmime "mime"
	"strings"
)

const (
	JSON = "application/json"
	Form = "application/x-www-form-urlencoded"
)

// aliases maps short tokens to full MIME types. Lookups that miss fall back
// to the extension table of the standard library.
var aliases = map[string]string{
	"form":       Form,
	"urlencoded": Form,
	"form-data":  Form,
	"json":       JSON,
	"html":       "text/html",
	"htm":        "text/html",
	"text":       "text/plain",
	"txt":        "text/plain",
	"xml":        "application/xml",
	"css":        "text/css",
	"csv":        "text/csv",
	"js":         "application/javascript",
	"png":        "image/png",
	"jpg":        "image/jpeg",
	"jpeg":       "image/jpeg",
	"gif":        "image/gif",
	"svg":        "image/svg+xml",
	"pdf":        "application/pdf",
	"bin":        "application/octet-stream",
}

// Resolve maps token to a full MIME type.
//
// Tokens that already contain a slash are returned unchanged. A leading dot is
// stripped, so ".json" and "json" resolve alike. Unknown tokens resolve to the
// empty string.
func Resolve(token string) string {
	if strings.Contains(token, "/") {
		return token
	}
	token = strings.ToLower(strings.TrimPrefix(token, "."))
	if t, ok := aliases[token]; ok {
		return t
	}
	if token == "" {
		return ""
	}
	t := stdmime.TypeByExtension("." + token)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// Essence returns the bare type of a Content-Type value, without parameters.
func Essence(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}
