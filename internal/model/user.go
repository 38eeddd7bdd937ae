package model

type UserID int64 // sqlite rowid

type CreateUserParams struct {
	Username string `form:"username"`
	Email    string `form:"email"`
	Password string `form:"password"`
}

type User struct {
	ID       UserID `db:"id"`
	Username string `db:"username"`
	Email    string `db:"email"`
	Password string `db:"password"`
}

// Identity is what an external OpenID Connect provider tells us about a user.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}
