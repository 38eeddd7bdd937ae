package post

import (
	"context"
	"fmt"

	"uk.co.dudmesh.bloggr/internal/model"
)

type Store interface {
	ListPosts(ctx context.Context, viewer model.UserID) ([]model.Post, error)
	PostByID(ctx context.Context, id model.PostID, viewer model.UserID) (*model.Post, error)
	CreatePost(ctx context.Context, post *model.Post) (model.PostID, error)
	UpdatePost(ctx context.Context, id model.PostID, title, body string) error
	DeletePost(ctx context.Context, id model.PostID) error
	LikePost(ctx context.Context, id model.PostID, user model.UserID) error
	UnlikePost(ctx context.Context, id model.PostID, user model.UserID) error
}

type service struct{}

func New() *service {
	return &service{}
}

func (s *service) List(ctx context.Context, store Store, viewer *model.User) ([]model.Post, error) {
	posts, err := store.ListPosts(ctx, viewerID(viewer))
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (s *service) Get(ctx context.Context, store Store, id model.PostID, viewer *model.User) (*model.Post, error) {
	return store.PostByID(ctx, id, viewerID(viewer))
}

// GetForAuthor returns the post only when author wrote it.
func (s *service) GetForAuthor(ctx context.Context, store Store, id model.PostID, author *model.User) (*model.Post, error) {
	if author == nil {
		return nil, model.ErrorNotAuthenticated
	}
	post, err := store.PostByID(ctx, id, author.ID)
	if err != nil {
		return nil, err
	}
	if !post.IsAuthor(author) {
		return nil, model.ErrorForbidden
	}
	return post, nil
}

func (s *service) Create(ctx context.Context, store Store, author *model.User, params *model.PostParams) (*model.Post, error) {
	if author == nil {
		return nil, model.ErrorNotAuthenticated
	}
	if params.Title == "" {
		return nil, model.Required("Title")
	}

	post := &model.Post{
		Title:    params.Title,
		Body:     params.Body,
		AuthorID: author.ID,
		Username: author.Username,
	}
	if _, err := store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}
	return post, nil
}

func (s *service) Update(ctx context.Context, store Store, id model.PostID, author *model.User, params *model.PostParams) error {
	if _, err := s.GetForAuthor(ctx, store, id, author); err != nil {
		return err
	}
	if params.Title == "" {
		return model.Required("Title")
	}
	if err := store.UpdatePost(ctx, id, params.Title, params.Body); err != nil {
		return fmt.Errorf("updating post: %w", err)
	}
	return nil
}

func (s *service) Delete(ctx context.Context, store Store, id model.PostID, author *model.User) error {
	if _, err := s.GetForAuthor(ctx, store, id, author); err != nil {
		return err
	}
	if err := store.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	return nil
}

// Like is idempotent; a user likes a post at most once.
func (s *service) Like(ctx context.Context, store Store, id model.PostID, user *model.User) error {
	if user == nil {
		return model.ErrorNotAuthenticated
	}
	if _, err := store.PostByID(ctx, id, user.ID); err != nil {
		return err
	}
	return store.LikePost(ctx, id, user.ID)
}

func (s *service) Unlike(ctx context.Context, store Store, id model.PostID, user *model.User) error {
	if user == nil {
		return model.ErrorNotAuthenticated
	}
	if _, err := store.PostByID(ctx, id, user.ID); err != nil {
		return err
	}
	return store.UnlikePost(ctx, id, user.ID)
}

func viewerID(viewer *model.User) model.UserID {
	if viewer == nil {
		return 0
	}
	return viewer.ID
}
