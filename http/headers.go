package http

import "strings"

// unsafeHeaders are the connection management and security sensitive fields
// that Set silently ignores. Names are lower case.
var unsafeHeaders = map[string]struct{}{
	"accept-charset":                 {},
	"accept-encoding":                {},
	"access-control-request-headers": {},
	"access-control-request-method":  {},
	"connection":                     {},
	"content-length":                 {},
	"cookie":                         {},
	"cookie2":                        {},
	"content-transfer-encoding":      {},
	"date":                           {},
	"expect":                         {},
	"host":                           {},
	"keep-alive":                     {},
	"origin":                         {},
	"referer":                        {},
	"trailer":                        {},
	"transfer-encoding":              {},
	"upgrade":                        {},
	"user-agent":                     {},
	"via":                            {},
}

// IsUnsafeHeader reports whether Set ignores field.
func IsUnsafeHeader(field string) bool {
	_, ok := unsafeHeaders[strings.ToLower(field)]
	return ok
}

// redirectable are the status codes whose Location is followed.
var redirectable = map[int]bool{
	301: true,
	302: true,
	303: true,
	305: true,
	307: true,
}

func isRedirect(code int) bool {
	return redirectable[code]
}
