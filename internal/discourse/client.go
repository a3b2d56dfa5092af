// Package discourse fetches topic data from a Discourse forum's JSON
// endpoints. Batch fetches tolerate per-URL failure: related posts are
// best-effort and one bad link must never sink the whole result.
package discourse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"github.com/lotas/forumhilfe/internal/applog"
	"github.com/lotas/forumhilfe/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var skipPrefixes = []string{"about:", "moz-extension:", "file:", "chrome:", "resource:", "data:"}

// FetchError reports a failed or malformed response from the forum.
type FetchError struct {
	URL    string
	Status int // 0 for shape/transport failures
	Reason string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
}

// Client fetches topics with a shared rate limit so a burst of related
// links does not hammer the forum.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 15 * time.Second},
		// Discourse anon rate limits sit around one request per second.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

// Wire shape of a Discourse topic endpoint. Only the first post of the
// stream is used; its absence is a hard parse failure.
type topicJSON struct {
	Title      string   `json:"title"`
	ID         int64    `json:"id"`
	PostsCount int      `json:"posts_count"`
	CategoryID int64    `json:"category_id"`
	Tags       []string `json:"tags"`
	PostStream struct {
		Posts []struct {
			Cooked     string `json:"cooked"`
			Raw        string `json:"raw"`
			Username   string `json:"username"`
			CreatedAt  string `json:"created_at"`
			ID         int64  `json:"id"`
			PostNumber int    `json:"post_number"`
		} `json:"posts"`
	} `json:"post_stream"`
}

// FetchTopic fetches a topic's JSON endpoint and returns its first post.
// Content carries the cooked HTML unchanged; sanitization happens later in
// the pipeline. Non-2xx status or a post-less stream is a *FetchError.
func (c *Client) FetchTopic(ctx context.Context, rawURL string) (*types.PostRecord, error) {
	jsonURL := JSONURL(rawURL)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jsonURL, nil)
	if err != nil {
		return nil, &FetchError{URL: jsonURL, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: jsonURL, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: jsonURL, Status: resp.StatusCode}
	}

	var topic topicJSON
	if err := json.NewDecoder(resp.Body).Decode(&topic); err != nil {
		return nil, &FetchError{URL: jsonURL, Reason: "decode: " + err.Error()}
	}
	if len(topic.PostStream.Posts) == 0 {
		return nil, &FetchError{URL: jsonURL, Reason: "invalid post data structure: post stream is empty"}
	}

	first := topic.PostStream.Posts[0]
	rec := &types.PostRecord{
		Title:      topic.Title,
		Content:    first.Cooked,
		RawContent: first.Raw,
		Author:     first.Username,
		TopicID:    topic.ID,
		PostID:     first.ID,
		PostNumber: first.PostNumber,
		CategoryID: topic.CategoryID,
		Tags:       topic.Tags,
	}
	if rec.PostNumber == 0 {
		rec.PostNumber = 1
	}
	if topic.PostsCount > 0 {
		rec.ReplyCount = topic.PostsCount - 1
	}
	if t, err := time.Parse(time.RFC3339, first.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	return rec, nil
}

// FetchMany fetches all URLs concurrently. The result always has exactly
// one entry per URL; a failed fetch yields nil at its key and is logged,
// never an error for the batch.
func (c *Client) FetchMany(ctx context.Context, urls []string) map[string]*types.PostRecord {
	results := make(map[string]*types.PostRecord, len(urls))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			rec, err := c.FetchTopic(ctx, u)
			if err != nil {
				applog.Error("fetch.related", err, "url", u)
				rec = nil
			}
			mu.Lock()
			results[u] = rec
			mu.Unlock()
		}(u)
	}

	wg.Wait()
	return results
}

// FetchReadable fetches an arbitrary page and extracts its readable text.
// Used as a fallback for related links that are not Discourse topics.
func (c *Client) FetchReadable(ctx context.Context, rawURL string) (title, text string, err error) {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(rawURL, prefix) {
			return "", "", fmt.Errorf("skipping non-HTTP URL: %s", rawURL)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", "", fmt.Errorf("extract readable content from %s: %w", rawURL, err)
	}
	return article.Title, article.TextContent, nil
}
