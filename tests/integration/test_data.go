//go:build integration

package integration

import (
	"fmt"
	"regexp"
	"time"
)

// TestPin is the pin used by every seeded and registered test user
const TestPin = "123456"

// TestEmail generates a unique address so tests never collide on the email index
func TestEmail(suffix string) string {
	return fmt.Sprintf("test-%d-%s@example.com", time.Now().UnixNano(), suffix)
}

var codePattern = regexp.MustCompile(`code is (\d{6})`)

// ExtractCodeFromEmail pulls the one-time code out of a verification email body
func ExtractCodeFromEmail(body string) string {
	m := codePattern.FindStringSubmatch(body)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}
