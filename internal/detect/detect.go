// Package detect decides whether a page descriptor is an eligible forum
// post and suppresses duplicate triggers for the same URL. A page that
// does not match is "not applicable", never an error.
package detect

import (
	"github.com/lotas/forumhilfe/internal/discourse"
	"github.com/lotas/forumhilfe/internal/types"
)

// Eligible reports whether a descriptor describes a Discourse topic page
// worth processing: a topic URL plus structural evidence that the page
// actually rendered a post.
func Eligible(desc types.PostDescriptor) bool {
	if !discourse.IsTopicURL(desc.CurrentURL) {
		return false
	}
	return desc.PostContent != "" || desc.PostTitle != ""
}

// Normalize fills in derived descriptor fields the extension may have
// left empty: the .json variant of each related topic link.
func Normalize(desc types.PostDescriptor) types.PostDescriptor {
	for i, rt := range desc.RelatedTopics {
		if rt.JSONURL == "" {
			desc.RelatedTopics[i].JSONURL = discourse.JSONURL(rt.URL)
		}
	}
	return desc
}

// Tracker suppresses re-entrant triggers per tab. Redundant DOM-mutation
// signals fire several detections for one page; only the first for a
// distinct URL in a given tab may start a pipeline. Two tabs showing the
// same URL are independent — each gets its own trigger (the second run is
// absorbed by the pipeline's idempotency check).
type Tracker struct {
	lastByTab map[int]string
}

func NewTracker() *Tracker {
	return &Tracker{lastByTab: make(map[int]string)}
}

// ShouldProcess reports whether url is a genuine navigation for this tab
// (differs from the tab's last processed URL) and records it if so.
func (t *Tracker) ShouldProcess(tabID int, url string) bool {
	if t.lastByTab[tabID] == url {
		return false
	}
	t.lastByTab[tabID] = url
	return true
}

// Forget drops the guard state for a tab, so a later detection of the
// same URL in that tab is processed again. Called when a tab closes or
// when activation evicts its entry.
func (t *Tracker) Forget(tabID int) {
	delete(t.lastByTab, tabID)
}

// Reset clears the guard for every tab, e.g. when participation is
// toggled off.
func (t *Tracker) Reset() {
	t.lastByTab = make(map[int]string)
}
