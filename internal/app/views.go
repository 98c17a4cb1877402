package app

import (
	"time"

	"slangdict/api/internal/comment"
	"slangdict/api/internal/store"
	"slangdict/api/internal/vote"
)

type TermView struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Slug      string    `json:"slug"`
	SourceURL string    `json:"sourceUrl,omitempty"`
	Archive   bool      `json:"archive"`
	CreatedAt time.Time `json:"createdAt"`
}

type TermRefView struct {
	Text string `json:"text"`
	Slug string `json:"slug"`
}

type TagView struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type DefinitionView struct {
	ID         int64           `json:"id"`
	Body       string          `json:"body"`
	Example    string          `json:"example,omitempty"`
	Upvotes    int             `json:"upvotes"`
	Downvotes  int             `json:"downvotes"`
	Score      int             `json:"score"`
	MyVote     *vote.Direction `json:"myVote"`
	References []TermRefView   `json:"references"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type TermDetail struct {
	TermView
	Definitions []DefinitionView `json:"definitions"`
	Tags        []TagView        `json:"tags"`
}

type CommentView struct {
	ID        int64           `json:"id"`
	ParentID  *int64          `json:"parentId"`
	Author    string          `json:"author"`
	Content   string          `json:"content"`
	Deleted   bool            `json:"deleted"`
	Upvotes   int             `json:"upvotes"`
	Downvotes int             `json:"downvotes"`
	MyVote    *vote.Direction `json:"myVote"`
	CreatedAt time.Time       `json:"createdAt"`
	Replies   []*CommentView  `json:"replies"`
}

type BookmarkView struct {
	Term      TermRefView `json:"term"`
	CreatedAt time.Time   `json:"createdAt"`
}

func termView(t store.Term) TermView {
	return TermView{
		ID:        t.ID,
		Text:      t.Text,
		Slug:      t.Slug,
		SourceURL: t.SourceURL,
		Archive:   t.IsArchive(),
		CreatedAt: t.CreatedAt,
	}
}

func termViews(terms []store.Term) []TermView {
	views := make([]TermView, 0, len(terms))
	for _, t := range terms {
		views = append(views, termView(t))
	}
	return views
}

func termRefView(t store.TermRef) TermRefView {
	return TermRefView{Text: t.Text, Slug: t.Slug}
}

func tagView(t store.Tag) TagView {
	return TagView{Name: t.Name, Slug: t.Slug}
}

func tagViews(tags []store.Tag) []TagView {
	views := make([]TagView, 0, len(tags))
	for _, t := range tags {
		views = append(views, tagView(t))
	}
	return views
}

func definitionView(d store.Definition, refs []store.TermRef) DefinitionView {
	view := DefinitionView{
		ID:         d.ID,
		Body:       d.Body,
		Example:    d.Example,
		Upvotes:    d.Upvotes,
		Downvotes:  d.Downvotes,
		Score:      d.Score(),
		References: make([]TermRefView, 0, len(refs)),
		CreatedAt:  d.CreatedAt,
	}
	for _, ref := range refs {
		view.References = append(view.References, termRefView(ref))
	}
	return view
}

// commentView blanks the content and author of deleted comments; the node
// itself stays so its replies keep their place.
func commentView(c store.Comment, myVote *vote.Direction) CommentView {
	view := CommentView{
		ID:        c.ID,
		ParentID:  c.ParentID,
		Author:    c.AuthorName,
		Content:   c.Content,
		Deleted:   c.IsDeleted,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
		MyVote:    myVote,
		CreatedAt: c.CreatedAt,
		Replies:   make([]*CommentView, 0),
	}
	if c.IsDeleted {
		view.Author = ""
		view.Content = ""
	}
	return view
}

func commentForest(nodes []*comment.Node, mine map[int64]vote.Direction) []*CommentView {
	views := make([]*CommentView, 0, len(nodes))
	for _, node := range nodes {
		var myVote *vote.Direction
		if dir, ok := mine[node.Comment.ID]; ok {
			myVote = &dir
		}
		view := commentView(node.Comment, myVote)
		view.Replies = commentForest(node.Replies, mine)
		views = append(views, &view)
	}
	return views
}
