package discourse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const topicBody = `{
	"title": "Help needed",
	"id": 42,
	"posts_count": 3,
	"category_id": 7,
	"tags": ["build", "linux"],
	"post_stream": {
		"posts": [
			{"cooked": "<p>Broken build</p>", "raw": "Broken build", "username": "alice",
			 "created_at": "2026-08-01T10:00:00Z", "id": 1, "post_number": 1}
		]
	}
}`

func TestFetchTopic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/t/42.json" {
			t.Errorf("expected /t/42.json, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(topicBody))
	}))
	defer srv.Close()

	rec, err := NewClient().FetchTopic(context.Background(), srv.URL+"/t/help-needed/42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "Help needed" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.Content != "<p>Broken build</p>" {
		t.Errorf("content = %q", rec.Content)
	}
	if rec.Author != "alice" {
		t.Errorf("author = %q", rec.Author)
	}
	if rec.TopicID != 42 {
		t.Errorf("topicId = %d", rec.TopicID)
	}
	if rec.ReplyCount != 2 {
		t.Errorf("replyCount = %d, want 2", rec.ReplyCount)
	}
	if rec.PostNumber != 1 || rec.PostID != 1 {
		t.Errorf("post = #%d id=%d", rec.PostNumber, rec.PostID)
	}
	if len(rec.Tags) != 2 || rec.CategoryID != 7 {
		t.Errorf("tags = %v, category = %d", rec.Tags, rec.CategoryID)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("createdAt not parsed")
	}
}

func TestFetchTopicBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient().FetchTopic(context.Background(), srv.URL+"/t/gone/1")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Status != http.StatusNotFound {
		t.Errorf("status = %d", fe.Status)
	}
}

func TestFetchTopicEmptyPostStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title": "empty", "id": 1, "post_stream": {"posts": []}}`))
	}))
	defer srv.Close()

	_, err := NewClient().FetchTopic(context.Background(), srv.URL+"/t/empty/1")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError for empty post stream, got %v", err)
	}
}

func TestFetchManyPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/t/1.json" {
			w.Write([]byte(topicBody))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u1 := srv.URL + "/t/ok/1"
	u2 := srv.URL + "/t/broken/2"
	results := NewClient().FetchMany(context.Background(), []string{u1, u2})

	if len(results) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(results))
	}
	if results[u1] == nil || results[u1].Title != "Help needed" {
		t.Errorf("u1 entry = %+v", results[u1])
	}
	if rec, ok := results[u2]; !ok || rec != nil {
		t.Errorf("u2 entry = %+v (present=%v), want nil", rec, ok)
	}
}

func TestFetchManyEmpty(t *testing.T) {
	results := NewClient().FetchMany(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected empty map, got %d entries", len(results))
	}
}

func TestFetchReadableSkipsNonHTTP(t *testing.T) {
	for _, u := range []string{"about:newtab", "moz-extension://abc", "data:text/html,x"} {
		if _, _, err := NewClient().FetchReadable(context.Background(), u); err == nil {
			t.Errorf("expected error for %q", u)
		}
	}
}
