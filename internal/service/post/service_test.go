package post

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"uk.co.dudmesh.bloggr/internal/model"
	"uk.co.dudmesh.bloggr/internal/store"
)

func newTestHandle(t *testing.T) *store.Handle {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "bloggr.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Init(context.Background()))

	h := db.Request()
	t.Cleanup(func() { h.Close() })
	return h
}

func createUser(t *testing.T, h *store.Handle, name string) *model.User {
	t.Helper()

	user := &model.User{Username: name, Email: name + "@example.com", Password: "x"}
	_, err := h.CreateUser(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestPosts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	h := newTestHandle(t)
	service := New()

	author := createUser(t, h, "author")
	other := createUser(t, h, "other")

	var post *model.Post

	t.Run("Create requires a title", func(t *testing.T) {
		_, err := service.Create(ctx, h, author, &model.PostParams{Body: "no title"})
		var verr *model.ValidationError
		assert.ErrorAs(err, &verr)
		assert.Equal("Title", verr.Field)
	})

	t.Run("Create requires a user", func(t *testing.T) {
		_, err := service.Create(ctx, h, nil, &model.PostParams{Title: "t"})
		assert.ErrorIs(err, model.ErrorNotAuthenticated)
	})

	t.Run("Create", func(t *testing.T) {
		var err error
		post, err = service.Create(ctx, h, author, &model.PostParams{Title: "Hello", Body: ""})
		require.NoError(t, err)
		assert.NotZero(post.ID)

		posts, err := service.List(ctx, h, nil)
		require.NoError(t, err)
		assert.Len(posts, 1)
	})

	t.Run("Only the author may edit", func(t *testing.T) {
		err := service.Update(ctx, h, post.ID, other, &model.PostParams{Title: "Hijacked"})
		assert.ErrorIs(err, model.ErrorForbidden)
		err = service.Delete(ctx, h, post.ID, other)
		assert.ErrorIs(err, model.ErrorForbidden)

		assert.Nil(service.Update(ctx, h, post.ID, author, &model.PostParams{Title: "Hello again", Body: "b"}))
		got, err := service.Get(ctx, h, post.ID, nil)
		require.NoError(t, err)
		assert.Equal("Hello again", got.Title)
	})

	t.Run("Likes", func(t *testing.T) {
		assert.Nil(service.Like(ctx, h, post.ID, other))
		assert.Nil(service.Like(ctx, h, post.ID, other))

		got, err := service.Get(ctx, h, post.ID, other)
		require.NoError(t, err)
		assert.Equal(1, got.LikeCount)
		assert.True(got.Liked)

		assert.Nil(service.Unlike(ctx, h, post.ID, other))
		got, err = service.Get(ctx, h, post.ID, other)
		require.NoError(t, err)
		assert.Equal(0, got.LikeCount)

		assert.ErrorIs(service.Like(ctx, h, 999, other), model.ErrorPostNotFound)
		assert.ErrorIs(service.Like(ctx, h, post.ID, nil), model.ErrorNotAuthenticated)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Nil(service.Delete(ctx, h, post.ID, author))
		_, err := service.Get(ctx, h, post.ID, nil)
		assert.ErrorIs(err, model.ErrorPostNotFound)
	})
}
