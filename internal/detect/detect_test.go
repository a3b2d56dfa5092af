package detect

import (
	"testing"

	"github.com/lotas/forumhilfe/internal/types"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		desc types.PostDescriptor
		want bool
	}{
		{
			"topic with content",
			types.PostDescriptor{CurrentURL: "https://f.test/t/help/42", PostContent: "<p>x</p>"},
			true,
		},
		{
			"topic with title only",
			types.PostDescriptor{CurrentURL: "https://f.test/t/help/42", PostTitle: "Help"},
			true,
		},
		{
			"topic URL but empty page",
			types.PostDescriptor{CurrentURL: "https://f.test/t/help/42"},
			false,
		},
		{
			"category page",
			types.PostDescriptor{CurrentURL: "https://f.test/c/bugs/5", PostContent: "<p>x</p>"},
			false,
		},
		{
			"front page",
			types.PostDescriptor{CurrentURL: "https://f.test/", PostTitle: "Forum"},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(tt.desc); got != tt.want {
				t.Errorf("Eligible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeDerivesJSONURLs(t *testing.T) {
	desc := types.PostDescriptor{
		RelatedTopics: []types.RelatedTopic{
			{URL: "https://f.test/t/one/1"},
			{URL: "https://f.test/t/two/2", JSONURL: "https://f.test/t/2.json"},
		},
	}
	got := Normalize(desc)
	if got.RelatedTopics[0].JSONURL != "https://f.test/t/1.json" {
		t.Errorf("derived = %q", got.RelatedTopics[0].JSONURL)
	}
	if got.RelatedTopics[1].JSONURL != "https://f.test/t/2.json" {
		t.Errorf("existing JSONURL changed: %q", got.RelatedTopics[1].JSONURL)
	}
}

func TestTrackerSuppressesRepeats(t *testing.T) {
	tr := NewTracker()

	if !tr.ShouldProcess(1, "https://f.test/t/a/1") {
		t.Fatal("first URL suppressed")
	}
	// Redundant mutation signals for the same page.
	if tr.ShouldProcess(1, "https://f.test/t/a/1") {
		t.Error("repeat URL not suppressed")
	}
	// Genuine navigation.
	if !tr.ShouldProcess(1, "https://f.test/t/b/2") {
		t.Error("new URL suppressed")
	}
	// Navigating back is a genuine navigation again.
	if !tr.ShouldProcess(1, "https://f.test/t/a/1") {
		t.Error("return navigation suppressed")
	}

	tr.Reset()
	if !tr.ShouldProcess(1, "https://f.test/t/a/1") {
		t.Error("URL suppressed after Reset")
	}
}

func TestTrackerScopedPerTab(t *testing.T) {
	tr := NewTracker()
	url := "https://f.test/t/a/1"

	if !tr.ShouldProcess(1, url) {
		t.Fatal("first tab suppressed")
	}
	// A second tab opening the same URL is its own navigation.
	if !tr.ShouldProcess(2, url) {
		t.Error("second tab suppressed by the first tab's guard")
	}
	if tr.ShouldProcess(2, url) {
		t.Error("repeat in the second tab not suppressed")
	}

	// Forgetting one tab leaves the other's guard intact.
	tr.Forget(1)
	if !tr.ShouldProcess(1, url) {
		t.Error("URL suppressed after Forget")
	}
	if tr.ShouldProcess(2, url) {
		t.Error("Forget(1) cleared tab 2's guard")
	}
}
