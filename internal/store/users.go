package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"uk.co.dudmesh.bloggr/internal/model"
)

func (h *Handle) CreateUser(ctx context.Context, user *model.User) (model.UserID, error) {
	err := h.commit(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `insert into user
			(username, email, password)
			values(:username, :email, :password)`, user)
		if err != nil {
			if dup := uniqueViolation(err); dup != nil {
				return dup
			}
			return fmt.Errorf("inserting user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting user id: %w", err)
		}
		user.ID = model.UserID(id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

func (h *Handle) UserByID(ctx context.Context, id model.UserID) (*model.User, error) {
	return h.fetchUser(ctx, `select * from user where id = ?`, id)
}

// UserByIdentifier matches either the username or the email address.
func (h *Handle) UserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	return h.fetchUser(ctx, `select * from user where username = ? or email = ? limit 1`, identifier, identifier)
}

func (h *Handle) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return h.fetchUser(ctx, `select * from user where email = ?`, email)
}

func (h *Handle) UpdatePassword(ctx context.Context, id model.UserID, hash string) error {
	return h.updatePassword(ctx, `update user set password = ? where id = ?`, hash, id)
}

func (h *Handle) UpdatePasswordByEmail(ctx context.Context, email, hash string) error {
	return h.updatePassword(ctx, `update user set password = ? where email = ?`, hash, email)
}

func (h *Handle) fetchUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	conn, err := h.Conn(ctx)
	if err != nil {
		return nil, err
	}

	user := &model.User{}
	if err := conn.GetContext(ctx, user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrorUserNotFound
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return user, nil
}

func (h *Handle) updatePassword(ctx context.Context, query, hash string, key any) error {
	return h.commit(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, hash, key)
		if err != nil {
			return fmt.Errorf("updating password: %w", err)
		}
		if rows, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		} else if rows == 0 {
			return model.ErrorUserNotFound
		}
		return nil
	})
}
