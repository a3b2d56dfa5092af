package summarize

import (
	"context"
	"sync"

	"github.com/lotas/forumhilfe/internal/applog"
	"github.com/lotas/forumhilfe/internal/types"
)

// SummarizeMany summarizes all posts concurrently under one profile.
// The result has exactly one entry per input key; a nil post, empty
// content, or failed request yields "" at that key and never aborts the
// batch — mirroring how related-post fetches degrade.
func (c *Client) SummarizeMany(ctx context.Context, posts map[string]*types.PostRecord, profile Profile) map[string]string {
	summaries := make(map[string]string, len(posts))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for url, post := range posts {
		if post == nil || post.Content == "" {
			// Workers spawned by earlier iterations may already be
			// writing the map.
			mu.Lock()
			summaries[url] = ""
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(url, content string) {
			defer wg.Done()
			s, err := c.Complete(ctx, profile, content)
			if err != nil {
				applog.Error("summarize.related", err, "url", url)
				s = ""
			}
			mu.Lock()
			summaries[url] = s
			mu.Unlock()
		}(url, post.Content)
	}

	wg.Wait()
	return summaries
}
