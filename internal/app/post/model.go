package post

import (
	"encoding/json"
	"errors"

	"threadboard/internal/media"
	"threadboard/internal/pagination"
)

// Post is either a thread (ParentID == nil) or a reply to one. A thread's
// Timestamp is its bump time; a reply's is its creation time.
type Post struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parent_id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	File      *string `json:"file"`
	Timestamp uint64  `json:"timestamp"`
}

func (p *Post) IsThread() bool {
	return p.ParentID == nil
}

// recordVersion is written into every stored record. Records without a
// version predate it and decode the same way.
const recordVersion = 1

type record struct {
	Version   int     `json:"v"`
	ID        string  `json:"id"`
	ParentID  *string `json:"parent_id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	File      *string `json:"file"`
	Timestamp uint64  `json:"timestamp"`
}

var errEmptyID = errors.New("record has no id")

func encodePost(p *Post) ([]byte, error) {
	return json.Marshal(record{
		Version:   recordVersion,
		ID:        p.ID,
		ParentID:  p.ParentID,
		Title:     p.Title,
		Message:   p.Message,
		File:      p.File,
		Timestamp: p.Timestamp,
	})
}

// decodeRecord accepts unknown fields and defaults missing ones; a missing
// timestamp reads as 0. Records from a newer version decode the same way,
// and their version is returned so callers can note them.
func decodeRecord(data []byte) (*Post, int, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, 0, err
	}
	if r.ID == "" {
		return nil, r.Version, errEmptyID
	}
	return &Post{
		ID:        r.ID,
		ParentID:  r.ParentID,
		Title:     r.Title,
		Message:   r.Message,
		File:      r.File,
		Timestamp: r.Timestamp,
	}, r.Version, nil
}

type CreateParams struct {
	Title    string
	Message  string
	ParentID *string
	File     *string
}

type CreateResult struct {
	// Redirect is the parent id for a reply and the new post's id otherwise.
	Redirect string
	Post     *Post
	Bumped   bool
}

type Thread struct {
	Post    *Post   `json:"post"`
	Replies []*Post `json:"replies"`
}

// Page is one page of the thread listing and the window it was cut from.
type Page struct {
	Posts []*Post
	pagination.Window
}

type Stats struct {
	Threads         int `json:"threads"`
	Replies         int `json:"replies"`
	DanglingReplies int `json:"dangling_replies"`
	SkippedRecords  int `json:"skipped_records"`
}

// CreatePostRequest is bound from the multipart form. Length limits are
// counted in runes on the untrimmed values.
type CreatePostRequest struct {
	Title    string  `form:"title" json:"title" binding:"max=100"`
	Message  string  `form:"message" json:"message" binding:"max=10000"`
	ParentID string  `form:"parent_id" json:"parent_id" binding:"max=64"`
	File     *string `form:"-" json:"-"`
}

type PostResponse struct {
	ID        string     `json:"id"`
	ParentID  *string    `json:"parent_id,omitempty"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	File      *string    `json:"file,omitempty"`
	FileURL   *string    `json:"file_url,omitempty"`
	Kind      media.Kind `json:"kind,omitempty"`
	Timestamp uint64     `json:"timestamp"`
}

type CreatePostResponse struct {
	Redirect string        `json:"redirect"`
	Post     *PostResponse `json:"post"`
}

type ThreadResponse struct {
	Post    *PostResponse   `json:"post"`
	Replies []*PostResponse `json:"replies"`
}

type ListResponse struct {
	Posts      []*PostResponse `json:"posts"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	PrevPage   *int            `json:"prev_page"`
	NextPage   *int            `json:"next_page"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
