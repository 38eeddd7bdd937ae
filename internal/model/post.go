package model

import "time"

type PostID int64

type PostParams struct {
	Title string `form:"title"`
	Body  string `form:"body"`
}

type Post struct {
	ID        PostID    `db:"id"`
	Title     string    `db:"title"`
	Body      string    `db:"body"`
	Created   time.Time `db:"created"`
	AuthorID  UserID    `db:"author_id"`
	Username  string    `db:"username"`
	LikeCount int       `db:"like_count"`
	Liked     bool      `db:"liked"`
}

// IsAuthor reports whether user wrote the post. Anonymous users never do.
func (p *Post) IsAuthor(user *User) bool {
	return user != nil && p.AuthorID == user.ID
}
