package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"uk.co.dudmesh.bloggr/internal/model"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "instance", "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Init(context.Background()))
	return db
}

func newTestHandle(t *testing.T) *Handle {
	t.Helper()

	h := newTestDatabase(t).Request()
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHandleLifecycle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	h := newTestDatabase(t).Request()
	assert.False(h.Opened())
	assert.Nil(h.Close(), "closing an unused handle is a no-op")

	first, err := h.Conn(ctx)
	require.NoError(t, err)
	second, err := h.Conn(ctx)
	require.NoError(t, err)
	assert.Same(first, second)
	assert.True(h.Opened())

	assert.Nil(h.Close())
	assert.False(h.Opened())

	_, err = first.ExecContext(ctx, "select 1")
	assert.Error(err, "connection is unusable after close")
}

func TestUsers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	h := newTestHandle(t)

	alice := &model.User{Username: "alice", Email: "alice@example.com", Password: "hash"}

	t.Run("Create", func(t *testing.T) {
		id, err := h.CreateUser(ctx, alice)
		assert.Nil(err)
		assert.NotZero(id)
		assert.Equal(id, alice.ID)
	})

	t.Run("Duplicate username", func(t *testing.T) {
		_, err := h.CreateUser(ctx, &model.User{Username: "alice", Email: "alice2@example.com", Password: "x"})
		assert.ErrorIs(err, model.ErrorDuplicateUsername)
		assert.ErrorIs(err, model.ErrorDuplicateUser)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		_, err := h.CreateUser(ctx, &model.User{Username: "alice2", Email: "alice@example.com", Password: "x"})
		assert.ErrorIs(err, model.ErrorDuplicateEmail)

		_, err = h.UserByIdentifier(ctx, "alice2")
		assert.ErrorIs(err, model.ErrorUserNotFound, "failed insert leaves no row")
	})

	t.Run("Lookup", func(t *testing.T) {
		user, err := h.UserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal("alice", user.Username)

		user, err = h.UserByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(alice.ID, user.ID)

		user, err = h.UserByIdentifier(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(alice.ID, user.ID)

		user, err = h.UserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(alice.ID, user.ID)

		_, err = h.UserByID(ctx, 999)
		assert.ErrorIs(err, model.ErrorUserNotFound)
		_, err = h.UserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(err, model.ErrorUserNotFound)
	})

	t.Run("Update password", func(t *testing.T) {
		assert.Nil(h.UpdatePassword(ctx, alice.ID, "hash2"))
		user, err := h.UserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal("hash2", user.Password)

		assert.Nil(h.UpdatePasswordByEmail(ctx, "alice@example.com", "hash3"))
		user, err = h.UserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal("hash3", user.Password)

		assert.ErrorIs(h.UpdatePasswordByEmail(ctx, "nobody@example.com", "x"), model.ErrorUserNotFound)
	})
}

func TestPosts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	h := newTestHandle(t)

	author := &model.User{Username: "author", Email: "author@example.com", Password: "x"}
	reader := &model.User{Username: "reader", Email: "reader@example.com", Password: "x"}
	_, err := h.CreateUser(ctx, author)
	require.NoError(t, err)
	_, err = h.CreateUser(ctx, reader)
	require.NoError(t, err)

	older := &model.Post{Title: "first", Body: "", AuthorID: author.ID, Created: time.Now().UTC().Add(-time.Hour)}
	newer := &model.Post{Title: "second", Body: "hello", AuthorID: author.ID}

	t.Run("Create", func(t *testing.T) {
		_, err := h.CreatePost(ctx, older)
		assert.Nil(err)
		_, err = h.CreatePost(ctx, newer)
		assert.Nil(err)
		assert.False(newer.Created.IsZero())
	})

	t.Run("List newest first", func(t *testing.T) {
		posts, err := h.ListPosts(ctx, 0)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal("second", posts[0].Title)
		assert.Equal("first", posts[1].Title)
		assert.Equal("author", posts[0].Username)
		assert.WithinDuration(time.Now(), posts[0].Created, time.Minute)
	})

	t.Run("Likes", func(t *testing.T) {
		assert.Nil(h.LikePost(ctx, newer.ID, reader.ID))
		assert.Nil(h.LikePost(ctx, newer.ID, reader.ID))
		assert.Nil(h.LikePost(ctx, newer.ID, author.ID))

		post, err := h.PostByID(ctx, newer.ID, reader.ID)
		require.NoError(t, err)
		assert.Equal(2, post.LikeCount)
		assert.True(post.Liked)

		assert.Nil(h.UnlikePost(ctx, newer.ID, reader.ID))
		post, err = h.PostByID(ctx, newer.ID, reader.ID)
		require.NoError(t, err)
		assert.Equal(1, post.LikeCount)
		assert.False(post.Liked)
	})

	t.Run("Update", func(t *testing.T) {
		assert.Nil(h.UpdatePost(ctx, older.ID, "first!", "edited"))
		post, err := h.PostByID(ctx, older.ID, 0)
		require.NoError(t, err)
		assert.Equal("first!", post.Title)
		assert.Equal("edited", post.Body)
		assert.Error(h.UpdatePost(ctx, 999, "x", "y"))
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Nil(h.DeletePost(ctx, newer.ID))
		_, err := h.PostByID(ctx, newer.ID, 0)
		assert.ErrorIs(err, model.ErrorPostNotFound)
		assert.Error(h.DeletePost(ctx, newer.ID))
	})
}

func TestInitResetsData(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	h := db.Request()
	_, err := h.CreateUser(ctx, &model.User{Username: "a", Email: "a@example.com", Password: "x"})
	require.NoError(t, err)
	require.NoError(t, h.Close())

	require.NoError(t, db.Init(ctx))

	h = db.Request()
	defer h.Close()
	_, err = h.UserByIdentifier(ctx, "a")
	assert.ErrorIs(t, err, model.ErrorUserNotFound)
}
