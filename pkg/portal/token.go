package portal

import (
	"net/url"
	"regexp"
	"strings"
)

// The landing page redirects with something like
// top.self.location.href='http://host/eportal/index.jsp?wlanuserip=...'.
// Quote style varies between portal builds.
var queryStringPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)href='.*?\?(.*?)'`),
	regexp.MustCompile(`(?s)href=".*?\?(.*?)"`),
}

// extractQueryString returns the query part of the first href on the page,
// or "" when none matches.
func extractQueryString(page string) string {
	for _, re := range queryStringPatterns {
		if m := re.FindStringSubmatch(page); len(m) > 1 {
			return m[1]
		}
	}

	return ""
}

type formField struct {
	key   string
	value string
}

// encodeForm is url.Values.Encode without the key sorting; the portal gets
// fields in the order its own login page submits them.
func encodeForm(fields []formField) string {
	var b strings.Builder

	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(f.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.value))
	}

	return b.String()
}
