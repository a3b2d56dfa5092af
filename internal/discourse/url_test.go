package discourse

import "testing"

func TestTopicID(t *testing.T) {
	tests := []struct {
		url    string
		wantID int64
		wantOK bool
	}{
		{"https://forum.example/t/help-needed/42", 42, true},
		{"https://forum.example/t/help-needed/42/3", 42, true},
		{"https://forum.example/t/help-needed/42?u=alice", 42, true},
		{"https://forum.example/t/help-needed/42#post_3", 42, true},
		{"https://forum.example/t/42", 42, true},
		{"https://forum.example/t/42.json", 42, true},
		{"https://forum.example/c/bugs/5", 0, false},
		{"https://forum.example/", 0, false},
		{"https://forum.example/t/slug-only", 0, false},
		{"not a url ::", 0, false},
	}

	for _, tt := range tests {
		id, ok := TopicID(tt.url)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("TopicID(%q) = %d, %v; want %d, %v", tt.url, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestTopicIDSameForURLVariants(t *testing.T) {
	variants := []string{
		"https://forum.example/t/broken-build/99",
		"https://forum.example/t/broken-build/99/2",
		"https://forum.example/t/broken-build/99?page=2",
		"https://forum.example/t/broken-build/99#post_1",
	}
	for _, v := range variants {
		id, ok := TopicID(v)
		if !ok || id != 99 {
			t.Errorf("TopicID(%q) = %d, %v; want 99, true", v, id, ok)
		}
	}
}

func TestJSONURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://forum.example/t/help-needed/42", "https://forum.example/t/42.json"},
		{"https://forum.example/t/help-needed/42/3", "https://forum.example/t/42.json"},
		{"https://forum.example/t/help-needed/42?u=alice", "https://forum.example/t/42.json"},
		{"https://forum.example/t/42.json", "https://forum.example/t/42.json"},
		{"https://forum.example/latest", "https://forum.example/latest.json"},
	}

	for _, tt := range tests {
		if got := JSONURL(tt.url); got != tt.want {
			t.Errorf("JSONURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
