package validate

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var sourcePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(https?://)?(www\.)?youtube\.com/watch\?v=[\w-]{11}`),
	regexp.MustCompile(`(?i)^(https?://)?(www\.)?youtu\.be/[\w-]{11}`),
	regexp.MustCompile(`(?i)^(https?://)?(www\.)?youtube\.com/shorts/[\w-]{11}`),
	regexp.MustCompile(`(?i)^(https?://)?(www\.)?youtube\.com/live/[\w-]{11}`),
}

var allowedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// SourceURL checks that raw is a usable media source reference. Errors are
// returned verbatim to the caller, so messages are user-facing.
func SourceURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("URL is required")
	}

	matched := false
	for _, pattern := range sourcePatterns {
		if pattern.MatchString(trimmed) {
			matched = true
			break
		}
	}
	if !matched {
		return errors.New("invalid YouTube URL, use a youtube.com or youtu.be link")
	}

	withScheme := trimmed
	if !strings.HasPrefix(withScheme, "http") {
		withScheme = "https://" + withScheme
	}
	parsed, err := url.Parse(withScheme)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !allowedHosts[strings.ToLower(parsed.Hostname())] {
		return errors.New("URL must be from youtube.com or youtu.be")
	}

	return nil
}
