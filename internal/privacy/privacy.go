// Package privacy strips credentials from URLs and messages before they are
// logged or reported. Catalog asset links are often pre-signed, so the query
// string of a download URL can be a bearer credential.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

// Redacted replaces sensitive values.
const Redacted = "REDACTED"

var (
	urlPattern = regexp.MustCompile(`\b(?:https?|s3|postgres(?:ql)?|mysql)://[^\s"'<>]+`)
	// key=value credentials outside URLs, e.g. in config or driver errors
	credentialPattern = regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret(?:[_-]?key)?|password|access[_-]?key)([=:])[^\s&;,:)"']+`)
	awsKeyPattern     = regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)
	// user:pass@tcp(host) in MySQL DSNs
	dsnPattern = regexp.MustCompile(`[^\s:/@]+:[^\s@/]+@tcp\(`)
)

// sensitiveParams are query keys whose values are dropped, compared in lower case.
var sensitiveParams = map[string]bool{
	"token":                true,
	"access_token":         true,
	"api_key":              true,
	"apikey":               true,
	"key":                  true,
	"sig":                  true,
	"signature":            true,
	"se":                   true, // SAS expiry travels with sig
	"x-amz-signature":      true,
	"x-amz-credential":     true,
	"x-amz-security-token": true,
	"x-goog-signature":     true,
	"x-goog-credential":    true,
}

// RedactURL removes user info and sensitive query values from rawURL while
// keeping scheme, host and path. Unparseable input is replaced entirely.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Redacted
	}
	if u.User != nil {
		u.User = url.User(Redacted)
	}
	if u.RawQuery == "" {
		return u.String()
	}

	q := u.Query()
	for k := range q {
		if sensitiveParams[strings.ToLower(k)] {
			q.Set(k, Redacted)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ScrubMessage redacts URLs, key=value credentials, AWS access key ids and
// database DSN passwords in message. Trailing punctuation is not treated as
// part of a URL.
func ScrubMessage(message string) string {
	out := urlPattern.ReplaceAllStringFunc(message, func(m string) string {
		trimmed := strings.TrimRight(m, ".,;:)")
		return RedactURL(trimmed) + m[len(trimmed):]
	})
	out = credentialPattern.ReplaceAllString(out, "${1}${2}"+Redacted)
	out = awsKeyPattern.ReplaceAllString(out, Redacted)
	return dsnPattern.ReplaceAllString(out, Redacted+"@tcp(")
}

// SanitizedError reports a scrubbed message but unwraps to the original.
type SanitizedError struct {
	original error
	msg      string
}

func (e *SanitizedError) Error() string { return e.msg }

func (e *SanitizedError) Unwrap() error { return e.original }

// WrapError returns err with URLs scrubbed from its message, or nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{original: err, msg: ScrubMessage(err.Error())}
}
