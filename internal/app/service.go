package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"slangdict/api/internal/apperr"
	"slangdict/api/internal/auth"
	"slangdict/api/internal/comment"
	"slangdict/api/internal/config"
	"slangdict/api/internal/logging"
	"slangdict/api/internal/rbac"
	"slangdict/api/internal/session"
	"slangdict/api/internal/store"
	"slangdict/api/internal/translit"
	"slangdict/api/internal/vote"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxTagLength    = 64

	// mirrorTTL is how long a mirrored identity is trusted before the users
	// row is refreshed from token claims again.
	mirrorTTL = 5 * time.Minute
)

type Service struct {
	cfg      config.Config
	store    *store.SQLStore
	votes    *vote.Engine
	comments *comment.Service
	sessions session.Store
	mirrored *cache.Cache
	logger   *slog.Logger
}

func New(cfg config.Config, dataStore *store.SQLStore, votes *vote.Engine, sessions session.Store, logger *slog.Logger) *Service {
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		votes:    votes,
		comments: comment.NewService(dataStore.DB(), logger),
		sessions: sessions,
		mirrored: cache.New(mirrorTTL, 2*mirrorTTL),
		logger:   logging.Module(logger, "app"),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Authenticate verifies a bearer token from the identity provider, rejects
// revoked ones, and mirrors the identity into the users table.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Actor, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.AuthTokenSecret), token)
	if err != nil {
		return auth.Actor{}, apperr.Wrap(apperr.KindAuthenticationRequired, err, "authentication required")
	}
	revoked, err := s.sessions.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return auth.Actor{}, apperr.Wrap(apperr.KindInternal, err, "check session")
	}
	if revoked {
		return auth.Actor{}, apperr.New(apperr.KindAuthenticationRequired, "session has ended")
	}

	actor := claims.Actor()
	if err := s.mirrorUser(ctx, actor); err != nil {
		return auth.Actor{}, err
	}
	return actor, nil
}

func (s *Service) mirrorUser(ctx context.Context, actor auth.Actor) error {
	key := actor.ID + "\x00" + actor.Username + "\x00" + string(actor.Role)
	if _, ok := s.mirrored.Get(key); ok {
		return nil
	}
	err := s.store.UpsertUser(ctx, store.User{ID: actor.ID, Username: actor.Username, Role: string(actor.Role)})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "mirror user")
	}
	s.mirrored.SetDefault(key, struct{}{})
	return nil
}

// Logout revokes the actor's token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, actor auth.Actor) error {
	if actor.TokenID == "" {
		return apperr.AuthenticationRequired()
	}
	if err := s.sessions.Revoke(ctx, actor.TokenID, actor.Expires); err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "revoke session")
	}
	s.logger.Info("session revoked", "user_id", actor.ID)
	return nil
}

func (s *Service) ListTerms(ctx context.Context, limit, offset int) ([]TermView, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		return nil, apperr.InvalidArgument("offset must not be negative")
	}
	terms, err := s.store.ListTerms(ctx, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list terms")
	}
	return termViews(terms), nil
}

func (s *Service) termBySlug(ctx context.Context, slug string) (store.Term, error) {
	term, err := s.store.GetTermBySlug(ctx, strings.TrimSpace(slug))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Term{}, apperr.NotFound("term")
	}
	if err != nil {
		return store.Term{}, apperr.Wrap(apperr.KindInternal, fmt.Errorf("get term: %w", err), "load term")
	}
	return term, nil
}

// GetTerm returns a term with its definitions, their cross-references and
// the term's tags. With a non-empty actorID each definition also carries
// that actor's vote.
func (s *Service) GetTerm(ctx context.Context, slug, actorID string) (TermDetail, error) {
	term, err := s.termBySlug(ctx, slug)
	if err != nil {
		return TermDetail{}, err
	}
	defs, err := s.store.ListDefinitions(ctx, term.ID)
	if err != nil {
		return TermDetail{}, apperr.Wrap(apperr.KindInternal, err, "load definitions")
	}
	refs, err := s.store.ListReferencedTerms(ctx, term.ID)
	if err != nil {
		return TermDetail{}, apperr.Wrap(apperr.KindInternal, err, "load references")
	}
	tags, err := s.store.ListTermTags(ctx, term.ID)
	if err != nil {
		return TermDetail{}, apperr.Wrap(apperr.KindInternal, err, "load tags")
	}

	ids := make([]int64, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
	}
	mine, err := s.votes.CurrentVotes(ctx, vote.Definition, actorID, ids)
	if err != nil {
		return TermDetail{}, err
	}

	detail := TermDetail{
		TermView:    termView(term),
		Definitions: make([]DefinitionView, 0, len(defs)),
		Tags:        tagViews(tags),
	}
	for _, def := range defs {
		view := definitionView(def, refs[def.ID])
		if dir, ok := mine[def.ID]; ok {
			view.MyVote = &dir
		}
		detail.Definitions = append(detail.Definitions, view)
	}
	return detail, nil
}

// CastVote parses the raw action and hands it to the vote engine.
func (s *Service) CastVote(ctx context.Context, actor auth.Actor, target vote.Target, targetID int64, rawAction string) (vote.Result, error) {
	if actor.ID == "" {
		return vote.Result{}, apperr.AuthenticationRequired()
	}
	if !rbac.Can(actor.Role, rbac.ActionVote) {
		return vote.Result{}, apperr.New(apperr.KindPermissionDenied, "voting is not allowed")
	}
	action, err := vote.ParseAction(rawAction)
	if err != nil {
		return vote.Result{}, err
	}
	return s.votes.Cast(ctx, actor.ID, target, targetID, action)
}

// ListComments returns the term's discussion as a forest. Deleted comments
// stay in place with their content blanked.
func (s *Service) ListComments(ctx context.Context, slug, actorID string) ([]*CommentView, error) {
	term, err := s.termBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	list, err := s.comments.List(ctx, term.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	mine, err := s.votes.CurrentVotes(ctx, vote.Comment, actorID, ids)
	if err != nil {
		return nil, err
	}
	return commentForest(comment.BuildTree(list), mine), nil
}

func (s *Service) AddComment(ctx context.Context, actor auth.Actor, slug string, parentID *int64, content string) (CommentView, error) {
	if actor.ID == "" {
		return CommentView{}, apperr.AuthenticationRequired()
	}
	term, err := s.termBySlug(ctx, slug)
	if err != nil {
		return CommentView{}, err
	}
	created, err := s.comments.Add(ctx, comment.Actor{ID: actor.ID, Role: actor.Role}, term.ID, parentID, content)
	if err != nil {
		return CommentView{}, err
	}
	return commentView(created, nil), nil
}

func (s *Service) DeleteComment(ctx context.Context, actor auth.Actor, commentID int64) error {
	return s.comments.SoftDelete(ctx, comment.Actor{ID: actor.ID, Role: actor.Role}, commentID)
}

func (s *Service) ToggleBookmark(ctx context.Context, actor auth.Actor, slug string) (bool, error) {
	if actor.ID == "" {
		return false, apperr.AuthenticationRequired()
	}
	term, err := s.termBySlug(ctx, slug)
	if err != nil {
		return false, err
	}
	bookmarked, err := s.store.ToggleBookmark(ctx, actor.ID, term.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, apperr.NotFound("term")
		}
		if store.IsUniqueViolation(err) {
			return false, apperr.Wrap(apperr.KindConflict, err, "bookmark changed concurrently")
		}
		return false, apperr.Wrap(apperr.KindInternal, err, "toggle bookmark")
	}
	return bookmarked, nil
}

func (s *Service) ListBookmarks(ctx context.Context, actor auth.Actor) ([]BookmarkView, error) {
	if actor.ID == "" {
		return nil, apperr.AuthenticationRequired()
	}
	items, err := s.store.ListBookmarks(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list bookmarks")
	}
	views := make([]BookmarkView, 0, len(items))
	for _, item := range items {
		views = append(views, BookmarkView{Term: termRefView(item.Term), CreatedAt: item.CreatedAt})
	}
	return views, nil
}

// AttachTag labels a term, creating the tag on first use. Moderators and
// admins only.
func (s *Service) AttachTag(ctx context.Context, actor auth.Actor, slug, name string) (TagView, error) {
	if actor.ID == "" {
		return TagView{}, apperr.AuthenticationRequired()
	}
	if !rbac.Can(actor.Role, rbac.ActionTag) {
		return TagView{}, apperr.New(apperr.KindPermissionDenied, "only moderators can tag terms")
	}
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxTagLength {
		return TagView{}, apperr.Newf(apperr.KindInvalidArgument, "tag name must be 1 to %d characters", maxTagLength)
	}
	term, err := s.termBySlug(ctx, slug)
	if err != nil {
		return TagView{}, err
	}

	tag, err := s.store.EnsureTag(ctx, name, TagSlug(name))
	if err != nil {
		return TagView{}, apperr.Wrap(apperr.KindInternal, err, "ensure tag")
	}
	if err := s.store.AttachTag(ctx, term.ID, tag.ID); err != nil {
		return TagView{}, apperr.Wrap(apperr.KindInternal, err, "attach tag")
	}
	s.logger.Info("term tagged", "term_id", term.ID, "tag", tag.Slug, "actor", actor.ID)
	return tagView(tag), nil
}

func (s *Service) TermsByTag(ctx context.Context, tagSlug string) ([]TermView, error) {
	tag, err := s.store.GetTagBySlug(ctx, strings.TrimSpace(tagSlug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("tag")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "load tag")
	}
	terms, err := s.store.ListTermsByTag(ctx, tag.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "list terms by tag")
	}
	return termViews(terms), nil
}

// TagSlug derives a URL-safe slug from a tag name: its transliteration key,
// or the lower-cased name with dashes for spaces when nothing survives
// transliteration.
func TagSlug(name string) string {
	if key := translit.Key(name); key != "" {
		return key
	}
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
