package summarize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lotas/forumhilfe/internal/types"
)

// Profile selects the system instruction used for a completion.
type Profile int

const (
	// ProfileSummary produces a neutral three-bullet digest of a post.
	ProfileSummary Profile = iota
	// ProfileModerator produces the short moderator-facing summary.
	ProfileModerator
	// ProfileReply composes the suggested moderator reply.
	ProfileReply
)

func (p Profile) String() string {
	switch p {
	case ProfileModerator:
		return "moderator"
	case ProfileReply:
		return "reply"
	default:
		return "summary"
	}
}

const (
	systemSummary = "You're a technical assistant summarizing a forum post for moderators. " +
		"Focus on the key issue, relevant context, and current status. " +
		"Summarize in 3 concise bullet points without any greetings or pleasantries."

	systemModerator = "You're a forum moderator. Keep responses super short (max 2 sentences), " +
		"direct, and use '@username' format (not their real name). " +
		"Always include hi@cursor.com for billing/subscription issues. Use '!'."

	systemReply = "You are an empathetic forum moderator that is warm yet succinct. Do not qualify. " +
		"You get to the point and use at least one \"!\". Max reply length should ideally be 5-10 words " +
		"and no more than 20 unless there is a ton of things to address or explain."
)

// Per-profile request tuning. Moderator summaries are capped hard so they
// stay usable as one-glance notes.
func (p Profile) system() string {
	switch p {
	case ProfileModerator:
		return systemModerator
	case ProfileReply:
		return systemReply
	default:
		return systemSummary
	}
}

func (p Profile) temperature() float64 {
	if p == ProfileReply {
		return 0.3
	}
	return 0.2
}

func (p Profile) maxTokens() int {
	switch p {
	case ProfileModerator:
		return 100
	case ProfileReply:
		return 1000
	default:
		return 500
	}
}

const replyPromptTemplate = `Current post:
%s

Context from related posts:
%s

Based on the above, generate an empathetic moderator response that is super succinct:
first classify if there is a problem. Be super succinct but warm in a response. Make sure to use "!".
If this is an issue with billing (only if they mention something about being charged or payment)
just say that they need to email hi@cursor.com and you will be happy to take a look!
This should not be mentioned for normal issues though.

Never qualify anything or say things like
"""
- "it sounds like"
- "you're feeling frustrated by ..."
- "that's completely understandable"
- "Thank you for sharing your thoughts"
"""`

// BuildReplyPrompt assembles the reply-composition prompt from the
// sanitized current post and the non-empty related summaries. Related
// context is ordered by URL so the prompt is stable for a given input.
func BuildReplyPrompt(current *types.PostRecord, relatedSummaries map[string]string) string {
	urls := make([]string, 0, len(relatedSummaries))
	for u, s := range relatedSummaries {
		if s != "" {
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)

	var context strings.Builder
	for i, u := range urls {
		if i > 0 {
			context.WriteString("\n\n")
		}
		context.WriteString("Related post: ")
		context.WriteString(u)
		context.WriteString("\n")
		context.WriteString(relatedSummaries[u])
	}

	return fmt.Sprintf(replyPromptTemplate, current.Content, context.String())
}
