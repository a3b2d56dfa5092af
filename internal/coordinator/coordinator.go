// Package coordinator owns the keyed cache, the tab registry, and the
// pipeline. It is the only writer for both cache and registry: every
// mutation happens on the Run goroutine, so the cache-tab coherence rule
// (an entry lives iff some tab is bound to its key) is enforced in one
// place. Pipeline runs execute on their own goroutines and report back
// through a completion channel.
package coordinator

import (
	"context"

	"github.com/lotas/forumhilfe/internal/applog"
	"github.com/lotas/forumhilfe/internal/cache"
	"github.com/lotas/forumhilfe/internal/detect"
	"github.com/lotas/forumhilfe/internal/pipeline"
	"github.com/lotas/forumhilfe/internal/server"
	"github.com/lotas/forumhilfe/internal/store"
	"github.com/lotas/forumhilfe/internal/types"
)

// Options tune coordination policy.
type Options struct {
	// ReuseOnActivate keeps a tab's cache entry when the tab regains
	// focus. The default (false) evicts and re-fetches: stale data is
	// worse than a redundant fetch when a user returns to an old tab.
	ReuseOnActivate bool
}

// Service is the coordination context.
type Service struct {
	srv     *server.Server
	store   *store.Store
	pipe    *pipeline.Pipeline
	cache   *cache.Cache
	tabs    *cache.Registry
	tracker *detect.Tracker
	opts    Options

	enabled     bool
	completions chan completion
}

type completion struct {
	tabID  int
	key    string
	result *types.ProcessedResult
	err    error
}

func New(srv *server.Server, st *store.Store, pipe *pipeline.Pipeline, opts Options) *Service {
	s := &Service{
		srv:         srv,
		store:       st,
		pipe:        pipe,
		cache:       cache.New(),
		tabs:        cache.NewRegistry(),
		tracker:     detect.NewTracker(),
		opts:        opts,
		enabled:     true,
		completions: make(chan completion, 16),
	}
	// The popup's toggle is authoritative when it has been used before.
	var connected bool
	if ok, err := st.GetJSON(store.KeyIsConnected, &connected); err == nil && ok {
		s.enabled = connected
	}
	return s
}

// Run consumes extension messages until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.srv.Messages():
			s.handle(ctx, msg)
		case done := <-s.completions:
			s.finish(done)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg server.IncomingMsg) {
	switch msg.Type {
	case server.MsgPostDetected:
		s.handlePostDetected(ctx, msg)
	case server.MsgTabNavigated:
		s.handleTabNavigated(msg.TabID, msg.URL)
	case server.MsgTabClosed:
		s.handleTabClosed(msg.TabID)
	case server.MsgTabActivated:
		s.handleTabActivated(msg.TabID)
	case server.MsgCheckForum:
		s.handleCheckForum(msg)
	case server.MsgConnectionUpdate:
		s.handleConnectionUpdate(msg)
	default:
		applog.Debug("coordinator.ignored", "type", msg.Type)
	}
}

func (s *Service) handlePostDetected(ctx context.Context, msg server.IncomingMsg) {
	if !s.enabled {
		return
	}
	desc, err := server.ParseDescriptor(msg)
	if err != nil {
		applog.Error("coordinator.descriptor", err)
		return
	}
	if !detect.Eligible(desc) {
		applog.Debug("coordinator.not_applicable", "url", desc.CurrentURL)
		return
	}
	if !s.tracker.ShouldProcess(desc.TabID, desc.CurrentURL) {
		applog.Debug("coordinator.duplicate", "tab", desc.TabID, "url", desc.CurrentURL)
		return
	}
	desc = detect.Normalize(desc)

	key := desc.CurrentURL
	prev := s.tabs.Bind(desc.TabID, key)
	if prev != "" && prev != key && s.tabs.RefCount(prev) == 0 {
		s.cache.Delete(prev)
	}

	s.store.SetJSON(store.KeyLastProcessedURL, desc.CurrentURL)

	cached := s.cache.Get(key)
	go func(desc types.PostDescriptor, cached *types.PostRecord) {
		result, err := s.pipe.Process(ctx, desc, cached)
		select {
		case s.completions <- completion{tabID: desc.TabID, key: key, result: result, err: err}:
		case <-ctx.Done():
		}
	}(desc, cached)
}

func (s *Service) finish(done completion) {
	if done.err != nil {
		s.srv.Send(server.OutgoingMsg{
			Type:  server.MsgPostDataError,
			TabID: done.tabID,
			Error: done.err.Error(),
		})
		return
	}
	// Cache only while the key is still referenced — the tab may have
	// navigated away or closed while the pipeline ran, in which case the
	// write would be an entry nothing evicts.
	if s.tabs.RefCount(done.key) > 0 {
		s.cache.Put(done.key, done.result.CurrentPost)
	}
	s.srv.Send(server.OutgoingMsg{
		Type:  server.MsgPostDataReady,
		TabID: done.tabID,
		Data:  done.result,
	})
}

func (s *Service) handleTabNavigated(tabID int, url string) {
	prev, ok := s.tabs.Lookup(tabID)
	if !ok || prev == url {
		// Same-URL signals are re-renders, not navigations — the entry
		// survives.
		return
	}
	s.tabs.Unbind(tabID)
	if s.tabs.RefCount(prev) == 0 {
		s.cache.Delete(prev)
		applog.Debug("coordinator.evict", "reason", "navigated", "key", prev)
	}
	// postDetected for the new URL rebinds the tab if it is a post page.
}

func (s *Service) handleTabClosed(tabID int) {
	s.tracker.Forget(tabID)
	if key, ok := s.tabs.Unbind(tabID); ok {
		s.cache.Delete(key)
		applog.Debug("coordinator.evict", "reason", "tab_closed", "key", key)
	}
}

func (s *Service) handleTabActivated(tabID int) {
	if s.opts.ReuseOnActivate {
		return
	}
	// The guard must not swallow the re-detection this eviction forces.
	s.tracker.Forget(tabID)
	if key, ok := s.tabs.Unbind(tabID); ok {
		s.cache.Delete(key)
		applog.Debug("coordinator.evict", "reason", "tab_activated", "key", key)
	}
}

func (s *Service) handleCheckForum(msg server.IncomingMsg) {
	isForum := false
	var info *types.ForumInfo
	if len(msg.Descriptor) > 0 {
		if desc, err := server.ParseDescriptor(msg); err == nil && detect.Eligible(desc) {
			isForum = true
			fi := desc.Forum
			info = &fi
		}
	}
	s.srv.Send(server.OutgoingMsg{
		Type:      server.MsgForumStatus,
		ID:        msg.ID,
		IsForum:   &isForum,
		ForumInfo: info,
	})
}

func (s *Service) handleConnectionUpdate(msg server.IncomingMsg) {
	if msg.IsConnected == nil {
		return
	}
	s.enabled = *msg.IsConnected
	if !s.enabled {
		// Participation off: drop per-tab state so nothing stale is
		// served when the user reconnects.
		s.cache.Clear()
		s.tracker.Reset()
	}
	s.store.SetJSON(store.KeyIsConnected, s.enabled)
	s.srv.Send(server.OutgoingMsg{
		Type:        server.MsgConnectionState,
		IsConnected: msg.IsConnected,
	})
	applog.Info("coordinator.connection", "enabled", s.enabled)
}
