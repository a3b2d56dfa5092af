// Package sanitize reduces forum markup to plain text suitable for
// prompting a language model.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// Text strips all markup from an HTML fragment and collapses whitespace.
// Pure — safe to call from any goroutine.
func Text(markup string) string {
	if markup == "" {
		return ""
	}
	// Keep words from adjacent block elements apart before tags are dropped.
	s := blockBoundary.Replace(markup)
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

var blockBoundary = strings.NewReplacer(
	"</p>", "</p> ",
	"</div>", "</div> ",
	"</li>", "</li> ",
	"<br>", " ",
	"<br/>", " ",
	"<br />", " ",
)
