package database

import (
	"encoding/json"
	"fmt"
	"time"
)

// Table names as deployed on the backend.
const (
	TableIdeas                    = "ideas"
	TableUsers                    = "users"
	TableContents                 = "contents"
	TableSources                  = "sources"
	TableIdeaGenerationPrompts    = "idea_generation_prompt"
	TableContentGenerationPrompts = "cotent_generation_prompt"
	TableScheduledContent         = "scheduled_content"
)

const (
	StatusNew  = "new"
	StatusUsed = "used"

	DefaultPriorityScore = 0.5
)

// Idea is a content idea waiting to be turned into posts.
type Idea struct {
	ID            int64      `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UserID        *int64     `json:"user_id"`
	Content       *string    `json:"content"`
	PriorityScore *float64   `json:"priority_score"` // 0..1
	UsedAt        *time.Time `json:"used_at"`
	Status        *string    `json:"status"`
}

// IdeaInsert and IdeaUpdate never carry id or created_at: the backend assigns
// both and the store has no reason to rewrite them.
type IdeaInsert struct {
	UserID        *int64     `json:"user_id,omitempty"`
	Content       *string    `json:"content,omitempty"`
	PriorityScore *float64   `json:"priority_score,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	Status        *string    `json:"status,omitempty"`
}

// IdeaUpdate changes the non-nil fields. Columns named in Null are set to
// NULL, e.g. Null: []string{"used_at"} to put a used idea back in rotation.
type IdeaUpdate struct {
	UserID        *int64     `json:"user_id,omitempty"`
	Content       *string    `json:"content,omitempty"`
	PriorityScore *float64   `json:"priority_score,omitempty"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	Status        *string    `json:"status,omitempty"`

	Null []string `json:"-"`
}

func (u IdeaUpdate) MarshalJSON() ([]byte, error) {
	type fields IdeaUpdate
	return marshalPatch(fields(u), u.Null)
}

// IsZero reports whether the update changes nothing.
func (u IdeaUpdate) IsZero() bool {
	return u.UserID == nil && u.Content == nil && u.PriorityScore == nil &&
		u.UsedAt == nil && u.Status == nil && len(u.Null) == 0
}

// User owns ideas, contents and sources.
type User struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Name         *string   `json:"name"`
	Email        *string   `json:"email"`
	Domain       *string   `json:"domain"`
	LinkedinURL  *string   `json:"linkedin_url"`
	FacebookURL  *string   `json:"facebook_url"`
	InstagramURL *string   `json:"instagram_url"`
	TwitterURL   *string   `json:"twitter_url"`
}

// The insert shapes below also leave out id and created_at.
type UserInsert struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Domain       *string `json:"domain,omitempty"`
	LinkedinURL  *string `json:"linkedin_url,omitempty"`
	FacebookURL  *string `json:"facebook_url,omitempty"`
	InstagramURL *string `json:"instagram_url,omitempty"`
	TwitterURL   *string `json:"twitter_url,omitempty"`
}

type UserUpdate struct {
	UserInsert
	Null []string `json:"-"`
}

func (u UserUpdate) MarshalJSON() ([]byte, error) { return marshalPatch(u.UserInsert, u.Null) }

// Content is a piece generated from an idea for one platform.
type Content struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UserID     *int64    `json:"user_id"`
	IdeaID     *int64    `json:"idea_id"`
	Platform   *string   `json:"platform"`
	Type       *string   `json:"type"`
	ContentURL *string   `json:"content_url"`
	Status     *string   `json:"status"`
	Content    *string   `json:"content"`
}

type ContentInsert struct {
	UserID     *int64  `json:"user_id,omitempty"`
	IdeaID     *int64  `json:"idea_id,omitempty"`
	Platform   *string `json:"platform,omitempty"`
	Type       *string `json:"type,omitempty"`
	ContentURL *string `json:"content_url,omitempty"`
	Status     *string `json:"status,omitempty"`
	Content    *string `json:"content,omitempty"`
}

type ContentUpdate struct {
	ContentInsert
	Null []string `json:"-"`
}

func (u ContentUpdate) MarshalJSON() ([]byte, error) { return marshalPatch(u.ContentInsert, u.Null) }

// Source is where ideas are collected from (feed, account, site).
type Source struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UserID      *int64    `json:"user_id"`
	SourceType  *string   `json:"source_type"`
	Description *string   `json:"description"`
	URL         *string   `json:"url"`
	Key         *string   `json:"key"`
}

type SourceInsert struct {
	UserID      *int64  `json:"user_id,omitempty"`
	SourceType  *string `json:"source_type,omitempty"`
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
	Key         *string `json:"key,omitempty"`
}

type SourceUpdate struct {
	SourceInsert
	Null []string `json:"-"`
}

func (u SourceUpdate) MarshalJSON() ([]byte, error) { return marshalPatch(u.SourceInsert, u.Null) }

// Prompt is the shape shared by the idea and content generation prompt tables.
type Prompt struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      *string   `json:"name"`
	Prompt    *string   `json:"prompt"`
	Status    *string   `json:"status"`
}

type PromptInsert struct {
	Name   *string `json:"name,omitempty"`
	Prompt *string `json:"prompt,omitempty"`
	Status *string `json:"status,omitempty"`
}

type PromptUpdate struct {
	PromptInsert
	Null []string `json:"-"`
}

func (u PromptUpdate) MarshalJSON() ([]byte, error) { return marshalPatch(u.PromptInsert, u.Null) }

// ScheduledContent is a content item queued for posting.
type ScheduledContent struct {
	ID          int64      `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UserID      *int64     `json:"user_id"`
	ContentID   *int64     `json:"content_id"`
	Status      *string    `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	PostedAt    *time.Time `json:"posted_at"`
}

type ScheduledContentInsert struct {
	UserID      *int64     `json:"user_id,omitempty"`
	ContentID   *int64     `json:"content_id,omitempty"`
	Status      *string    `json:"status,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
}

type ScheduledContentUpdate struct {
	ScheduledContentInsert
	Null []string `json:"-"`
}

func (u ScheduledContentUpdate) MarshalJSON() ([]byte, error) { return marshalPatch(u.ScheduledContentInsert, u.Null) }

// marshalPatch encodes v and adds an explicit null for every column in nulls.
func marshalPatch(v any, nulls []string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil || len(nulls) == 0 {
		return raw, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for _, col := range nulls {
		if _, ok := fields[col]; ok {
			return nil, fmt.Errorf("column %s is both set and cleared", col)
		}
		fields[col] = json.RawMessage("null")
	}
	return json.Marshal(fields)
}

// Ptr returns a pointer to v, for filling optional row fields.
func Ptr[T any](v T) *T {
	return &v
}
