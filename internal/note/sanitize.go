package note

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// sanitizeContent strips any markup from note text. Notes are plain text, so
// entities the policy escapes are decoded again before storing.
func sanitizeContent(content string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(content)))
}
