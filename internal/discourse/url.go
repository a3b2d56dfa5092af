package discourse

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Discourse topic paths look like /t/some-slug/12345 or /t/12345,
// optionally followed by a post number segment.
var topicPathRE = regexp.MustCompile(`^/t/(?:([^/]+)/)?(\d+)(?:/\d+)?/?$`)

// TopicID extracts the stable numeric topic id from a topic URL.
// Anchors and query strings are ignored, so every URL variant of the same
// topic yields the same id. Returns false if the URL is not a topic page.
func TopicID(rawURL string) (int64, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, false
	}
	path := strings.TrimSuffix(u.Path, ".json")
	m := topicPathRE.FindStringSubmatch(path)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// IsTopicURL reports whether rawURL points at a Discourse topic page.
func IsTopicURL(rawURL string) bool {
	_, ok := TopicID(rawURL)
	return ok
}

// JSONURL returns the .json API endpoint for a topic URL:
// https://forum.example/t/slug/42 -> https://forum.example/t/42.json.
// URLs already ending in .json pass through unchanged; URLs that are not
// topic pages get a bare .json suffix, matching what the forum serves for
// its other list endpoints.
func JSONURL(rawURL string) string {
	if strings.HasSuffix(rawURL, ".json") {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL + ".json"
	}
	if id, ok := TopicID(rawURL); ok {
		u.Path = "/t/" + strconv.FormatInt(id, 10) + ".json"
		u.RawQuery = ""
		u.Fragment = ""
		return u.String()
	}
	u.Path += ".json"
	u.Fragment = ""
	return u.String()
}
