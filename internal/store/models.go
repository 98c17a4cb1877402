package store

import "time"

// User mirrors an identity owned by the external auth provider.
type User struct {
	ID        string
	Username  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Term struct {
	ID          int64
	Text        string
	Slug        string
	SourceURL   string
	SubmittedBy *string
	CreatedAt   time.Time
}

// IsArchive reports whether the term came from bulk ingestion rather than a
// user submission.
func (t Term) IsArchive() bool {
	return t.SubmittedBy == nil
}

type Definition struct {
	ID        int64
	TermID    int64
	Body      string
	Example   string
	Upvotes   int
	Downvotes int
	CreatedAt time.Time
}

func (d Definition) Score() int {
	return d.Upvotes - d.Downvotes
}

type Comment struct {
	ID         int64
	TermID     int64
	AuthorID   string
	AuthorName string
	ParentID   *int64
	Content    string
	IsDeleted  bool
	Upvotes    int
	Downvotes  int
	CreatedAt  time.Time
}

type Tag struct {
	ID   int64
	Name string
	Slug string
}

// TermRef is the short form of a term used in listings and links.
type TermRef struct {
	ID   int64
	Text string
	Slug string
}

type DefinitionReference struct {
	DefinitionID     int64
	ReferencedTermID int64
}

type Bookmark struct {
	Term      TermRef
	CreatedAt time.Time
}
