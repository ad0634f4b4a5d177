package logger

import (
	"net/url"
	"strings"
)

// sensitiveKeys are query parameter fragments that mark a request's query as
// unfit for access logs.
var sensitiveKeys = []string{
	"pin", "otp", "code", "token", "secret", "email", "phrase", "answer", "reference",
}

// SanitizedEmail masks an email address for logging. The first character of
// the local part and the top-level domain stay readable: "ada@example.com"
// becomes "a**@*******.com".
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	var b strings.Builder
	b.Grow(len(email))
	for i, r := range local {
		if i == 0 {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('*')
	}
	b.WriteByte('@')

	labels := strings.Split(domain, ".")
	for i, label := range labels {
		if i > 0 {
			b.WriteByte('.')
		}
		if i == len(labels)-1 {
			b.WriteString(label)
			continue
		}
		b.WriteString(strings.Repeat("*", len(label)))
	}
	return b.String()
}

// SanitizeQueryString reports whether a raw query carries credentials or
// contact details. Queries that fail to parse are treated as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for key := range values {
		key = strings.ToLower(key)
		for _, frag := range sensitiveKeys {
			if strings.Contains(key, frag) {
				return true
			}
		}
	}
	return false
}
