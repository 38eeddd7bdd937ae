package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"uk.co.dudmesh.bloggr/internal/model"
)

const selectPosts = `select p.id, p.title, p.body, p.created, p.author_id, u.username,
	(select count(*) from post_like l where l.post_id = p.id) as like_count,
	exists(select 1 from post_like l where l.post_id = p.id and l.user_id = ?) as liked
	from post p join user u on p.author_id = u.id`

// ListPosts returns every post, newest first. viewer may be zero for anonymous requests.
func (h *Handle) ListPosts(ctx context.Context, viewer model.UserID) ([]model.Post, error) {
	conn, err := h.Conn(ctx)
	if err != nil {
		return nil, err
	}

	posts := []model.Post{}
	if err := conn.SelectContext(ctx, &posts, selectPosts+` order by p.created desc, p.id desc`, viewer); err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func (h *Handle) PostByID(ctx context.Context, id model.PostID, viewer model.UserID) (*model.Post, error) {
	conn, err := h.Conn(ctx)
	if err != nil {
		return nil, err
	}

	post := &model.Post{}
	if err := conn.GetContext(ctx, post, selectPosts+` where p.id = ?`, viewer, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrorPostNotFound
		}
		return nil, fmt.Errorf("fetching post: %w", err)
	}
	return post, nil
}

func (h *Handle) CreatePost(ctx context.Context, post *model.Post) (model.PostID, error) {
	if post.Created.IsZero() {
		post.Created = time.Now().UTC()
	}
	err := h.commit(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `insert into post
			(title, body, created, author_id)
			values(:title, :body, :created, :author_id)`, post)
		if err != nil {
			return fmt.Errorf("inserting post: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting post id: %w", err)
		}
		post.ID = model.PostID(id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return post.ID, nil
}

func (h *Handle) UpdatePost(ctx context.Context, id model.PostID, title, body string) error {
	return h.commit(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `update post set title = ?, body = ? where id = ?`, title, body, id)
		if err != nil {
			return fmt.Errorf("updating post: %w", err)
		}
		return expectOneRow(res)
	})
}

func (h *Handle) DeletePost(ctx context.Context, id model.PostID) error {
	return h.commit(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `delete from post_like where post_id = ?`, id); err != nil {
			return fmt.Errorf("deleting likes: %w", err)
		}
		res, err := tx.ExecContext(ctx, `delete from post where id = ?`, id)
		if err != nil {
			return fmt.Errorf("deleting post: %w", err)
		}
		return expectOneRow(res)
	})
}

// LikePost records a like. Liking twice leaves a single row.
func (h *Handle) LikePost(ctx context.Context, id model.PostID, user model.UserID) error {
	return h.commit(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `insert or ignore into post_like (post_id, user_id, created) values (?, ?, ?)`,
			id, user, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("liking post: %w", err)
		}
		return nil
	})
}

func (h *Handle) UnlikePost(ctx context.Context, id model.PostID, user model.UserID) error {
	return h.commit(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `delete from post_like where post_id = ? and user_id = ?`, id, user); err != nil {
			return fmt.Errorf("unliking post: %w", err)
		}
		return nil
	})
}
