package store

import (
	"context"
	"strings"
	"time"

	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/model"
)

// FeedStore holds the short-video feed snapshot and its interaction
// actions.
type FeedStore struct {
	base   *Store[model.VideoPost]
	docs   gateway.DocumentStore
	userID string
}

// NewFeedStore creates the feed store. userID attributes likes and
// bookmarks; empty for an anonymous session.
func NewFeedStore(docs gateway.DocumentStore, pageSize int) *FeedStore {
	f := &FeedStore{docs: docs}
	f.base = New("feed", func(p model.VideoPost) string { return p.ID }, f.fetchPage, pageSize).
		WithClone(model.VideoPost.Clone)
	return f
}

func (f *FeedStore) fetchPage(ctx context.Context, cursor string, pageSize int) ([]model.VideoPost, error) {
	docs, err := f.docs.Query(ctx, gateway.Query{
		Collection: gateway.CollectionPosts,
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      pageSize,
		StartAfter: cursor,
	})
	if err != nil {
		return nil, err
	}

	posts := make([]model.VideoPost, 0, len(docs))
	for _, doc := range docs {
		post, err := gateway.DecodePost(doc)
		if err != nil {
			logger.Warn("rejecting malformed post document", logger.ErrorField(err))
			continue
		}
		posts = append(posts, *post)
	}
	return posts, nil
}

// SetUser switches the acting user and clears per-user snapshot state.
func (f *FeedStore) SetUser(userID string) {
	f.userID = userID
	f.base.Reset()
}

// Load fetches the first feed page.
func (f *FeedStore) Load(ctx context.Context) error {
	return f.base.Load(ctx)
}

// LoadMore fetches the next feed page.
func (f *FeedStore) LoadMore(ctx context.Context) error {
	return f.base.LoadMore(ctx)
}

// Snapshot returns a copy of the current feed state.
func (f *FeedStore) Snapshot() Snapshot[model.VideoPost] {
	return f.base.Snapshot()
}

// Post returns a loaded post by id.
func (f *FeedStore) Post(id string) (model.VideoPost, bool) {
	return f.base.Get(id)
}

// PostsBy returns the loaded posts of one author.
func (f *FeedStore) PostsBy(authorID string) []model.VideoPost {
	return f.base.Filter(func(p model.VideoPost) bool { return p.AuthorID == authorID })
}

// Search returns loaded posts whose caption or hashtags contain the
// query, case-insensitively. Purely client-side over the snapshot.
func (f *FeedStore) Search(query string) []model.VideoPost {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return f.base.Filter(func(p model.VideoPost) bool {
		if strings.Contains(strings.ToLower(p.Caption), q) {
			return true
		}
		for _, tag := range p.Hashtags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})
}

// Subscribe registers a snapshot listener.
func (f *FeedStore) Subscribe(fn func(Snapshot[model.VideoPost])) func() {
	return f.base.Subscribe(fn)
}

// ToggleLike flips the like flag and counter immediately and fires the
// remote write; on failure the flip is rolled back.
func (f *FeedStore) ToggleLike(ctx context.Context, postID string) error {
	var wasLiked bool
	return f.base.Optimistic(ctx, "toggleLike", Mutation[model.VideoPost]{
		ID: postID,
		Apply: func(p *model.VideoPost) error {
			wasLiked = p.Liked
			ToggleCounter(&p.Liked, &p.Likes)
			return nil
		},
		Compensate: func(p *model.VideoPost) {
			ToggleCounter(&p.Liked, &p.Likes)
		},
		Remote: func(ctx context.Context) error {
			delta := int64(1)
			if wasLiked {
				delta = -1
			}
			if err := f.docs.Increment(ctx, gateway.CollectionPosts, postID, "likes", delta); err != nil {
				return err
			}
			if f.userID == "" {
				return nil
			}
			if wasLiked {
				return f.docs.ArrayRemove(ctx, gateway.CollectionPosts, postID, "likedBy", f.userID)
			}
			return f.docs.ArrayUnion(ctx, gateway.CollectionPosts, postID, "likedBy", f.userID)
		},
	})
}

// ToggleBookmark flips the bookmark flag; the bookmark set lives on the
// post document.
func (f *FeedStore) ToggleBookmark(ctx context.Context, postID string) error {
	var wasBookmarked bool
	return f.base.Optimistic(ctx, "toggleBookmark", Mutation[model.VideoPost]{
		ID: postID,
		Apply: func(p *model.VideoPost) error {
			wasBookmarked = p.Bookmarked
			p.Bookmarked = !p.Bookmarked
			return nil
		},
		Compensate: func(p *model.VideoPost) {
			p.Bookmarked = !p.Bookmarked
		},
		Remote: func(ctx context.Context) error {
			if f.userID == "" {
				return nil
			}
			if wasBookmarked {
				return f.docs.ArrayRemove(ctx, gateway.CollectionPosts, postID, "bookmarkedBy", f.userID)
			}
			return f.docs.ArrayUnion(ctx, gateway.CollectionPosts, postID, "bookmarkedBy", f.userID)
		},
	})
}

// RegisterView bumps the view counter for a post that entered the
// viewport.
func (f *FeedStore) RegisterView(ctx context.Context, postID string) error {
	return f.base.Optimistic(ctx, "registerView", Mutation[model.VideoPost]{
		ID: postID,
		Apply: func(p *model.VideoPost) error {
			p.Views++
			return nil
		},
		Compensate: func(p *model.VideoPost) {
			p.Views--
			if p.Views < 0 {
				p.Views = 0
			}
		},
		Remote: func(ctx context.Context) error {
			return f.docs.Increment(ctx, gateway.CollectionPosts, postID, "views", 1)
		},
	})
}

// CreatePost publishes a new post and prepends it to the snapshot.
func (f *FeedStore) CreatePost(ctx context.Context, post model.VideoPost) (string, error) {
	post.AuthorID = f.userID
	post.CreatedAt = time.Now()

	doc := gateway.Document{
		"authorId":     post.AuthorID,
		"authorName":   post.AuthorName,
		"mediaUrl":     post.MediaURL,
		"thumbnailUrl": post.ThumbnailURL,
		"caption":      post.Caption,
		"hashtags":     post.Hashtags,
		"likes":        int64(0),
		"comments":     int64(0),
		"shares":       int64(0),
		"views":        int64(0),
	}
	id, err := f.docs.Create(ctx, gateway.CollectionPosts, doc)
	if err != nil {
		return "", err
	}
	post.ID = id
	f.base.Insert(post)
	return id, nil
}

// Wait blocks until in-flight remote writes settle.
func (f *FeedStore) Wait() {
	f.base.Wait()
}
