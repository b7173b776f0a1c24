package outputfmt

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const redacted = "[redacted]"

var (
	absoluteURLInTextRE = regexp.MustCompile(`https?://[^\s"'<>]+`)
	// webhooks/<application id>/<token> and interactions/<id>/<token>
	tokenPathRE = regexp.MustCompile(`/(webhooks|interactions)/(\d+)/([A-Za-z0-9_\-.]{20,})`)
	botTokenRE  = regexp.MustCompile(`(?i)\b(bot|bearer)\s+[A-Za-z0-9_\-.]{20,}`)
)

// ErrorText sanitizes an error for the operator log channel.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	return Sanitize(err.Error())
}

// Sanitize strips URL hosts, redacts token-like query values and replaces
// webhook, interaction and bot tokens.
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	out := absoluteURLInTextRE.ReplaceAllStringFunc(raw, sanitizeURL)
	out = tokenPathRE.ReplaceAllString(out, "/$1/$2/"+redacted)
	return botTokenRE.ReplaceAllString(out, "$1 "+redacted)
}

// Truncate cuts s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if q := redactQuery(u.Query()); q != "" {
		path += "?" + q
	}
	if frag := u.EscapedFragment(); frag != "" {
		path += "#" + frag
	}
	return path
}

func redactQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	for k := range q {
		if sensitiveKey(k) {
			q.Set(k, redacted)
		}
	}
	return q.Encode()
}

func sensitiveKey(key string) bool {
	n := strings.ToLower(strings.TrimSpace(key))
	n = strings.NewReplacer("-", "", "_", "").Replace(n)
	if n == "" {
		return false
	}
	if n == "key" || n == "sig" || n == "signature" {
		return true
	}
	for _, part := range []string{"apikey", "authorization", "token", "secret", "password", "cookie"} {
		if strings.Contains(n, part) {
			return true
		}
	}
	return false
}
