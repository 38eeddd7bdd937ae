package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.bloggr/internal/model"
	postsvc "uk.co.dudmesh.bloggr/internal/service/post"
)

type PostService interface {
	List(ctx context.Context, store postsvc.Store, viewer *model.User) ([]model.Post, error)
	Get(ctx context.Context, store postsvc.Store, id model.PostID, viewer *model.User) (*model.Post, error)
	GetForAuthor(ctx context.Context, store postsvc.Store, id model.PostID, author *model.User) (*model.Post, error)
	Create(ctx context.Context, store postsvc.Store, author *model.User, params *model.PostParams) (*model.Post, error)
	Update(ctx context.Context, store postsvc.Store, id model.PostID, author *model.User, params *model.PostParams) error
	Delete(ctx context.Context, store postsvc.Store, id model.PostID, author *model.User) error
	Like(ctx context.Context, store postsvc.Store, id model.PostID, user *model.User) error
	Unlike(ctx context.Context, store postsvc.Store, id model.PostID, user *model.User) error
}

func postID(c echo.Context) (model.PostID, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound)
	}
	return model.PostID(id), nil
}

func Index(posts PostService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := scope(c)
		list, err := posts.List(c.Request().Context(), cc.DB, cc.User)
		if err != nil {
			return err
		}
		return render(c, http.StatusOK, "index.html", &Page{Title: "Posts", Posts: list})
	}
}

func CreatePost(posts PostService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodGet {
			return render(c, http.StatusOK, "create.html", &Page{Title: "New Post"})
		}

		cc := scope(c)
		params := &model.PostParams{}
		if err := c.Bind(params); err != nil {
			return err
		}

		_, err := posts.Create(c.Request().Context(), cc.DB, cc.User, params)
		var validationErr *model.ValidationError
		switch {
		case errors.As(err, &validationErr):
			return renderForm(c, "create.html", "New Post", validationErr.Error())
		case err != nil:
			return err
		}
		return c.Redirect(http.StatusFound, "/")
	}
}

// PostDetail shows a single post to anyone.
func PostDetail(posts PostService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		cc := scope(c)
		post, err := posts.Get(c.Request().Context(), cc.DB, id, cc.User)
		if err != nil {
			return err
		}
		return render(c, http.StatusOK, "detail.html", &Page{Title: post.Title, Post: post})
	}
}

func UpdatePost(posts PostService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		cc := scope(c)
		ctx := c.Request().Context()

		post, err := posts.GetForAuthor(ctx, cc.DB, id, cc.User)
		if err != nil {
			return err
		}
		page := &Page{Title: "Edit \"" + post.Title + "\"", Post: post}
		if c.Request().Method == http.MethodGet {
			return render(c, http.StatusOK, "update.html", page)
		}

		params := &model.PostParams{}
		if err := c.Bind(params); err != nil {
			return err
		}
		err = posts.Update(ctx, cc.DB, id, cc.User, params)
		var validationErr *model.ValidationError
		switch {
		case errors.As(err, &validationErr):
			form, ferr := c.FormParams()
			if ferr != nil {
				return ferr
			}
			page.Form = form
			page.Flashes = []string{validationErr.Error()}
			return render(c, http.StatusOK, "update.html", page)
		case err != nil:
			return err
		}
		return c.Redirect(http.StatusFound, "/")
	}
}

func DeletePost(posts PostService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		cc := scope(c)
		if err := posts.Delete(c.Request().Context(), cc.DB, id, cc.User); err != nil {
			return err
		}
		return c.Redirect(http.StatusFound, "/")
	}
}

func LikePost(posts PostService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		cc := scope(c)
		if err := posts.Like(c.Request().Context(), cc.DB, id, cc.User); err != nil {
			return err
		}
		return c.Redirect(http.StatusFound, "/")
	}
}

func UnlikePost(posts PostService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := postID(c)
		if err != nil {
			return err
		}
		cc := scope(c)
		if err := posts.Unlike(c.Request().Context(), cc.DB, id, cc.User); err != nil {
			return err
		}
		return c.Redirect(http.StatusFound, "/")
	}
}
