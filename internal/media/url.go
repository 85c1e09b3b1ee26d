package media

import (
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// pathPrefixes are the path-segment and embed shapes that carry the video ID
// as the following segment.
var pathPrefixes = map[string]bool{
	"embed":  true,
	"v":      true,
	"e":      true,
	"shorts": true,
	"live":   true,
}

// IsSupportedURL reports whether text is a YouTube video URL in one of the
// short-link, embed, query-parameter, or path-segment shapes.
func IsSupportedURL(text string) bool {
	_, ok := ExtractVideoID(text)
	return ok
}

// ExtractVideoID returns the video ID carried by a supported URL.
func ExtractVideoID(text string) (string, bool) {
	raw := strings.TrimSpace(text)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	segments := splitPath(u.Path)
	switch canonicalHost(u.Hostname()) {
	case "youtu.be":
		if len(segments) == 0 {
			return "", false
		}
		return validID(segments[0])
	case "youtube.com", "youtube-nocookie.com":
		if id := u.Query().Get("v"); id != "" {
			return validID(id)
		}
		return idFromSegments(segments)
	default:
		return "", false
	}
}

func idFromSegments(segments []string) (string, bool) {
	if len(segments) >= 2 && pathPrefixes[segments[0]] {
		return validID(segments[1])
	}
	// Legacy channel links: /u/<n>/<id>.
	if len(segments) >= 3 && segments[0] == "u" {
		return validID(segments[2])
	}
	return "", false
}

func canonicalHost(host string) string {
	host = strings.ToLower(host)
	for _, prefix := range []string{"www.", "m.", "music."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func validID(id string) (string, bool) {
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}
