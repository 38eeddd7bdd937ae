package user

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"uk.co.dudmesh.bloggr/internal/model"
)

const (
	ResetTokenPurpose   = "password-reset-salt"
	ResetTokenMaxAge    = 600 * time.Second
	UsernameSuffixBytes = 4
)

var hashCost = 10

// dummyHash is compared against when no user matches so that unknown
// identifiers take as long to reject as wrong passwords.
var dummyHash = mustHash("bloggr-dummy-password")

type Store interface {
	CreateUser(ctx context.Context, user *model.User) (model.UserID, error)
	UserByID(ctx context.Context, id model.UserID) (*model.User, error)
	UserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id model.UserID, hash string) error
	UpdatePasswordByEmail(ctx context.Context, email, hash string) error
}

type TokenSigner interface {
	Issue(purpose, subject string) (string, error)
	Verify(signed, purpose string, maxAge time.Duration) (string, error)
}

type service struct {
	tokens TokenSigner
}

func New(tokens TokenSigner) *service {
	return &service{tokens}
}

// Register validates params in the order username, password, email and
// stores a new user with a hashed password.
func (s *service) Register(ctx context.Context, store Store, params *model.CreateUserParams) (*model.User, error) {
	switch {
	case params.Username == "":
		return nil, model.Required("Username")
	case params.Password == "":
		return nil, model.Required("Password")
	case params.Email == "":
		return nil, model.Required("Email")
	}

	encodedPassword, err := hashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: params.Username,
		Email:    params.Email,
		Password: encodedPassword,
	}
	if _, err := store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

// Authenticate matches identifier against usernames and emails. Unknown
// identifiers and wrong passwords produce the same error.
func (s *service) Authenticate(ctx context.Context, store Store, identifier, password string) (*model.User, error) {
	user, err := store.UserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			checkPassword(dummyHash, password)
			return nil, model.ErrorInvalidCredentials
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	if !checkPassword(user.Password, password) {
		return nil, model.ErrorInvalidCredentials
	}

	return user, nil
}

func (s *service) ChangePassword(ctx context.Context, store Store, current *model.User, currentPassword, newPassword string) error {
	if current == nil {
		return model.ErrorNotAuthenticated
	}

	user, err := store.UserByID(ctx, current.ID)
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return model.ErrorNotAuthenticated
		}
		return fmt.Errorf("fetching user: %w", err)
	}

	if !checkPassword(user.Password, currentPassword) {
		return model.ErrorIncorrectPassword
	}
	if newPassword == "" {
		return model.Required("New password")
	}

	encodedPassword, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := store.UpdatePassword(ctx, user.ID, encodedPassword); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	return nil
}

// ForgotPassword returns a reset token when email belongs to a user. found is
// false, with no error, when it does not, including for an empty email.
func (s *service) ForgotPassword(ctx context.Context, store Store, email string) (token string, found bool, err error) {
	if email == "" {
		return "", false, nil
	}

	user, err := store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fetching user: %w", err)
	}

	token, err = s.tokens.Issue(ResetTokenPurpose, user.Email)
	if err != nil {
		return "", false, fmt.Errorf("issuing reset token: %w", err)
	}

	return token, true, nil
}

// CheckResetToken returns the email a reset token was issued for.
func (s *service) CheckResetToken(token string) (string, error) {
	return s.tokens.Verify(token, ResetTokenPurpose, ResetTokenMaxAge)
}

// ResetPassword sets a new password for the owner of a valid reset token.
// Tokens are not marked as used.
func (s *service) ResetPassword(ctx context.Context, store Store, token, newPassword string) error {
	email, err := s.CheckResetToken(token)
	if err != nil {
		return err
	}
	if newPassword == "" {
		return model.Required("New password")
	}

	encodedPassword, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := store.UpdatePasswordByEmail(ctx, email, encodedPassword); err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return model.ErrorTokenExpiredOrInvalid
		}
		return fmt.Errorf("updating password: %w", err)
	}

	return nil
}

// LinkFederated resolves the local account for a provider identity, creating
// one on first sight. Created accounts get a random password that is never
// shown to anyone and a username derived from the email's local part.
func (s *service) LinkFederated(ctx context.Context, store Store, identity *model.Identity) (*model.User, bool, error) {
	if identity == nil || identity.Email == "" {
		return nil, false, model.ErrorInvalidEmail
	}

	user, err := store.UserByEmail(ctx, identity.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, model.ErrorUserNotFound) {
		return nil, false, fmt.Errorf("fetching user: %w", err)
	}

	randomPassword, err := model.RandomSecret()
	if err != nil {
		return nil, false, fmt.Errorf("generating password: %w", err)
	}
	encodedPassword, err := hashPassword(randomPassword)
	if err != nil {
		return nil, false, err
	}

	user = &model.User{
		Username: model.LocalPart(identity.Email),
		Email:    identity.Email,
		Password: encodedPassword,
	}
	_, err = store.CreateUser(ctx, user)
	if errors.Is(err, model.ErrorDuplicateUsername) {
		suffix, serr := model.RandomHex(UsernameSuffixBytes)
		if serr != nil {
			return nil, false, fmt.Errorf("generating username suffix: %w", serr)
		}
		user.Username = fmt.Sprintf("%s_%s", user.Username, suffix)
		_, err = store.CreateUser(ctx, user)
	}
	if err != nil {
		return nil, false, fmt.Errorf("creating user: %w", err)
	}

	return user, true, nil
}

func hashPassword(password string) (string, error) {
	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("generating encoded password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(passwordBytes), nil
}

func checkPassword(encodedPassword, password string) bool {
	passwordBytes, err := base64.StdEncoding.DecodeString(encodedPassword)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(passwordBytes, []byte(password)) == nil
}

func mustHash(password string) string {
	encoded, err := hashPassword(password)
	if err != nil {
		panic(err)
	}
	return encoded
}
