// Package pipeline turns a detected post into stored summaries: sanitize,
// summarize the current post, summarize related posts in a batch, compose
// a moderator reply, persist. One run is strictly staged; runs for
// different topics are independent. A per-topic in-flight table plus a
// persisted idempotency entry guarantee at most one round of external
// calls per topic within a session.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/lotas/forumhilfe/internal/applog"
	"github.com/lotas/forumhilfe/internal/discourse"
	"github.com/lotas/forumhilfe/internal/sanitize"
	"github.com/lotas/forumhilfe/internal/store"
	"github.com/lotas/forumhilfe/internal/summarize"
	"github.com/lotas/forumhilfe/internal/types"
)

// Stage names the phase a pipeline run failed in.
type Stage int

const (
	StageDeduping Stage = iota
	StageFetching
	StageSummarizing
	StageComposingReply
	StagePersisting
)

var stageNames = [...]string{"deduping", "fetching", "summarizing", "composing-reply", "persisting"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// StageError wraps a failure with the stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type inflight struct {
	done   chan struct{}
	result *types.ProcessedResult
	err    error
}

// Pipeline orchestrates fetch, summarization, and persistence.
type Pipeline struct {
	forum *discourse.Client
	llm   *summarize.Client
	store *store.Store

	mu       sync.Mutex
	inflight map[int64]*inflight
}

func New(forum *discourse.Client, llm *summarize.Client, st *store.Store) *Pipeline {
	return &Pipeline{
		forum:    forum,
		llm:      llm,
		store:    st,
		inflight: make(map[int64]*inflight),
	}
}

// Process runs the pipeline for one descriptor. cached, when non-nil, is
// the already-fetched record for the descriptor's key and skips the
// current-post fetch. Concurrent calls for the same topic attach to the
// first run and return its result; a topic already processed this session
// returns the stored result without any external calls.
//
// On failure nothing is written to the store — a run either persists the
// whole result or none of it.
func (p *Pipeline) Process(ctx context.Context, desc types.PostDescriptor, cached *types.PostRecord) (*types.ProcessedResult, error) {
	topicID, ok := discourse.TopicID(desc.CurrentURL)
	if !ok {
		return nil, &StageError{Stage: StageDeduping, Err: fmt.Errorf("no topic id in %q", desc.CurrentURL)}
	}

	// Dedup: a stored result for this topic short-circuits the run.
	var stored types.ProcessedResult
	if ok, err := p.store.GetJSON(store.ProcessedKey(topicID), &stored); err == nil && ok {
		applog.Info("pipeline.dedup", "topic", topicID)
		return &stored, nil
	}

	// At most one run per topic: later triggers wait for the first.
	p.mu.Lock()
	if fl, running := p.inflight[topicID]; running {
		p.mu.Unlock()
		applog.Info("pipeline.attach", "topic", topicID)
		select {
		case <-fl.done:
			return fl.result, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	p.inflight[topicID] = fl
	p.mu.Unlock()

	result, err := p.run(ctx, desc, topicID, cached)

	fl.result, fl.err = result, err
	close(fl.done)
	p.mu.Lock()
	delete(p.inflight, topicID)
	p.mu.Unlock()

	return result, err
}

func (p *Pipeline) run(ctx context.Context, desc types.PostDescriptor, topicID int64, cached *types.PostRecord) (*types.ProcessedResult, error) {
	applog.Info("pipeline.start", "topic", topicID, "url", desc.CurrentURL, "related", len(desc.RelatedTopics))

	// Fetching: current post and related batch run concurrently.
	relatedURLs := make([]string, 0, len(desc.RelatedTopics))
	for _, rt := range desc.RelatedTopics {
		u := rt.JSONURL
		if u == "" {
			u = discourse.JSONURL(rt.URL)
		}
		relatedURLs = append(relatedURLs, u)
	}

	relatedCh := make(chan map[string]*types.PostRecord, 1)
	go func() {
		relatedCh <- p.forum.FetchMany(ctx, relatedURLs)
	}()

	current := cached
	if current == nil {
		rec, err := p.forum.FetchTopic(ctx, desc.CurrentURL)
		if err != nil {
			applog.Error("pipeline.fetch", err, "topic", topicID)
			<-relatedCh
			return nil, &StageError{Stage: StageFetching, Err: err}
		}
		current = rec
	}
	related := <-relatedCh

	// Summarizing: sanitize everything, then one moderator-profile call
	// for the current post and a batch for the related ones. A related
	// summary that fails is dropped, never fatal.
	cur := *current
	cur.Content = sanitize.Text(cur.Content)
	for url, rec := range related {
		if rec == nil {
			continue
		}
		r := *rec
		r.Content = sanitize.Text(r.Content)
		related[url] = &r
	}

	currentSummary, err := p.llm.Complete(ctx, summarize.ProfileModerator, cur.Content)
	if err != nil {
		applog.Error("pipeline.summarize", err, "topic", topicID)
		return nil, &StageError{Stage: StageSummarizing, Err: err}
	}
	relatedSummaries := p.llm.SummarizeMany(ctx, related, summarize.ProfileSummary)

	// Composing the reply from the current post plus every related
	// summary that survived.
	prompt := summarize.BuildReplyPrompt(&cur, relatedSummaries)
	modResponse, err := p.llm.Complete(ctx, summarize.ProfileReply, prompt)
	if err != nil {
		applog.Error("pipeline.reply", err, "topic", topicID)
		return nil, &StageError{Stage: StageComposingReply, Err: err}
	}

	// Persisting: one transaction, all keys or none.
	cur.Summary = currentSummary
	for url, rec := range related {
		if rec != nil {
			rec.Summary = relatedSummaries[url]
		}
	}
	result := &types.ProcessedResult{
		CurrentPost:  &cur,
		RelatedPosts: related,
		ModResponse:  modResponse,
	}

	payload, err := store.MarshalMulti(map[string]any{
		store.KeyCurrentPostData:    result.CurrentPost,
		store.KeyRelatedPostsData:   result.RelatedPosts,
		store.KeyModResponse:        result.ModResponse,
		store.ProcessedKey(topicID): result,
	})
	if err != nil {
		return nil, &StageError{Stage: StagePersisting, Err: err}
	}
	if err := p.store.SetMulti(payload); err != nil {
		applog.Error("pipeline.persist", err, "topic", topicID)
		return nil, &StageError{Stage: StagePersisting, Err: err}
	}

	applog.Info("pipeline.done", "topic", topicID, "related", len(related))
	return result, nil
}
