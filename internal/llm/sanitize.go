package llm

import (
	"bytes"
	"strings"
)

// CleanJSONReply strips the Markdown code fences and surrounding prose some
// models wrap around a JSON body. It never alters the JSON itself.
func CleanJSONReply(content string) []byte {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	b := []byte(s)
	if len(b) > 0 && b[0] != '{' && b[0] != '[' {
		if i := bytes.IndexByte(b, '{'); i >= 0 {
			if j := bytes.LastIndexByte(b, '}'); j > i {
				b = b[i : j+1]
			}
		}
	}
	return b
}
