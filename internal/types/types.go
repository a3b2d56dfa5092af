package types

import "time"

// RelatedTopic is a link to another topic extracted from the
// "suggested topics" section of a topic page.
type RelatedTopic struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	JSONURL string `json:"jsonUrl"` // .json API variant; derived if empty
}

// ForumInfo identifies the forum a descriptor came from.
type ForumInfo struct {
	Name     string `json:"name"`
	BaseURL  string `json:"baseUrl"`
	Category string `json:"category,omitempty"`
}

// PostDescriptor is everything the extension extracted from a topic page
// on one navigation. It is immutable once handed to the pipeline.
type PostDescriptor struct {
	TabID         int            `json:"tabId"`
	CurrentURL    string         `json:"currentUrl"`
	Forum         ForumInfo      `json:"forumInfo"`
	RelatedTopics []RelatedTopic `json:"relatedTopics"`
	PostTitle     string         `json:"postTitle"`
	PostContent   string         `json:"postContent"` // raw markup from the page
	PostAuthor    string         `json:"postAuthor"`
	PostDate      string         `json:"postDate"`
}

// PostRecord is one fetched topic's first post. Content is sanitized
// plain text, RawContent the source markup. Summary is filled in by the
// pipeline's summarizing stage.
type PostRecord struct {
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	RawContent string    `json:"rawContent,omitempty"`
	Author     string    `json:"author"`
	CreatedAt  time.Time `json:"createdAt"`
	TopicID    int64     `json:"topicId"`
	PostID     int64     `json:"postId"`
	PostNumber int       `json:"postNumber"`
	ReplyCount int       `json:"replyCount"`
	CategoryID int64     `json:"category,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Summary    string    `json:"summary,omitempty"`
}

// ProcessedResult is the complete output of one pipeline run. RelatedPosts
// keeps one entry per requested URL; nil marks a fetch or summary that
// failed and was skipped.
type ProcessedResult struct {
	CurrentPost  *PostRecord            `json:"currentPost"`
	RelatedPosts map[string]*PostRecord `json:"relatedPosts"`
	ModResponse  string                 `json:"modResponse"`
}
