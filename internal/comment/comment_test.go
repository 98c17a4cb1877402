package comment_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slangdict/api/internal/apperr"
	"slangdict/api/internal/comment"
	"slangdict/api/internal/rbac"
	"slangdict/api/internal/store"
	"slangdict/api/internal/store/storetest"
)

var (
	alice = comment.Actor{ID: "alice", Role: rbac.RoleUser}
	bob   = comment.Actor{ID: "bob", Role: rbac.RoleUser}
	mod   = comment.Actor{ID: "mod", Role: rbac.RoleModerator}
)

func setup(t *testing.T) (*store.DB, *comment.Service, int64) {
	t.Helper()
	db := storetest.NewSQLite(t)
	storetest.SeedUser(t, db, "alice", "user")
	storetest.SeedUser(t, db, "bob", "user")
	storetest.SeedUser(t, db, "mod", "moderator")
	termID := storetest.SeedTerm(t, db, "φάση", "1")
	return db, comment.NewService(db, nil), termID
}

func TestAddAndReply(t *testing.T) {
	_, svc, termID := setup(t)
	ctx := context.Background()

	root, err := svc.Add(ctx, alice, termID, nil, "  τι φάση;  ")
	require.NoError(t, err)
	assert.Equal(t, "τι φάση;", root.Content)
	assert.Equal(t, "alice", root.AuthorName)
	assert.Nil(t, root.ParentID)
	assert.Zero(t, root.Upvotes)
	assert.Zero(t, root.Downvotes)

	reply, err := svc.Add(ctx, bob, termID, &root.ID, "καμία")
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)
}

func TestAddValidation(t *testing.T) {
	db, svc, termID := setup(t)
	ctx := context.Background()
	otherTerm := storetest.SeedTerm(t, db, "μπρο", "2")
	foreign, err := svc.Add(ctx, alice, otherTerm, nil, "αλλού")
	require.NoError(t, err)
	missing := int64(9999)

	cases := []struct {
		name    string
		actor   comment.Actor
		termID  int64
		parent  *int64
		content string
		kind    apperr.Kind
	}{
		{name: "anonymous", actor: comment.Actor{}, termID: termID, content: "γεια", kind: apperr.KindAuthenticationRequired},
		{name: "blank content", actor: alice, termID: termID, content: "   ", kind: apperr.KindInvalidArgument},
		{name: "too long", actor: alice, termID: termID, content: strings.Repeat("α", comment.MaxContentLength+1), kind: apperr.KindInvalidArgument},
		{name: "missing term", actor: alice, termID: 9999, content: "γεια", kind: apperr.KindNotFound},
		{name: "missing parent", actor: alice, termID: termID, parent: &missing, content: "γεια", kind: apperr.KindInvalidArgument},
		{name: "parent on other term", actor: alice, termID: termID, parent: &foreign.ID, content: "γεια", kind: apperr.KindInvalidArgument},
		{name: "unknown author", actor: comment.Actor{ID: "ghost"}, termID: termID, content: "γεια", kind: apperr.KindAuthenticationRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tc.actor, tc.termID, tc.parent, tc.content)
			assert.Equal(t, tc.kind, apperr.KindOf(err), "got %v", err)
		})
	}
	assert.Equal(t, 1, storetest.Count(t, db, `SELECT COUNT(*) FROM comments`))
}

func TestAddAcceptsMaxLength(t *testing.T) {
	_, svc, termID := setup(t)
	_, err := svc.Add(context.Background(), alice, termID, nil, strings.Repeat("ω", comment.MaxContentLength))
	assert.NoError(t, err)
}

func TestSoftDelete(t *testing.T) {
	db, svc, termID := setup(t)
	ctx := context.Background()
	root, err := svc.Add(ctx, alice, termID, nil, "αρχή")
	require.NoError(t, err)
	reply, err := svc.Add(ctx, bob, termID, &root.ID, "απάντηση")
	require.NoError(t, err)

	err = svc.SoftDelete(ctx, bob, root.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied), "got %v", err)

	require.NoError(t, svc.SoftDelete(ctx, alice, root.ID))
	require.NoError(t, svc.SoftDelete(ctx, alice, root.ID))
	require.NoError(t, svc.SoftDelete(ctx, mod, reply.ID))

	err = svc.SoftDelete(ctx, alice, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
	err = svc.SoftDelete(ctx, comment.Actor{}, root.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthenticationRequired), "got %v", err)

	list, err := svc.List(ctx, termID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsDeleted)
	assert.Equal(t, "αρχή", list[0].Content)
	assert.True(t, list[1].IsDeleted)
	assert.Equal(t, 2, storetest.Count(t, db, `SELECT COUNT(*) FROM comments`))
}

func TestListOrderAndTree(t *testing.T) {
	_, svc, termID := setup(t)
	ctx := context.Background()
	a, err := svc.Add(ctx, alice, termID, nil, "a")
	require.NoError(t, err)
	b, err := svc.Add(ctx, bob, termID, nil, "b")
	require.NoError(t, err)
	a1, err := svc.Add(ctx, bob, termID, &a.ID, "a1")
	require.NoError(t, err)
	a1x, err := svc.Add(ctx, alice, termID, &a1.ID, "a1x")
	require.NoError(t, err)
	a2, err := svc.Add(ctx, mod, termID, &a.ID, "a2")
	require.NoError(t, err)

	list, err := svc.List(ctx, termID)
	require.NoError(t, err)
	ids := make([]int64, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{a.ID, b.ID, a1.ID, a1x.ID, a2.ID}, ids)

	roots := comment.BuildTree(list)
	require.Len(t, roots, 2)
	assert.Equal(t, a.ID, roots[0].Comment.ID)
	assert.Equal(t, b.ID, roots[1].Comment.ID)
	require.Len(t, roots[0].Replies, 2)
	assert.Equal(t, a1.ID, roots[0].Replies[0].Comment.ID)
	assert.Equal(t, a2.ID, roots[0].Replies[1].Comment.ID)
	require.Len(t, roots[0].Replies[0].Replies, 1)
	assert.Equal(t, a1x.ID, roots[0].Replies[0].Replies[0].Comment.ID)
	assert.Empty(t, roots[1].Replies)
}

func TestBuildTreeOrphanBecomesRoot(t *testing.T) {
	missing := int64(40)
	parent := int64(1)
	roots := comment.BuildTree([]store.Comment{
		{ID: 2, ParentID: &parent},
		{ID: 1},
		{ID: 3, ParentID: &missing},
	})
	require.Len(t, roots, 2)
	assert.Equal(t, int64(1), roots[0].Comment.ID)
	assert.Equal(t, int64(3), roots[1].Comment.ID)
	require.Len(t, roots[0].Replies, 1)
	assert.Equal(t, int64(2), roots[0].Replies[0].Comment.ID)
	assert.Empty(t, comment.BuildTree(nil))
}
