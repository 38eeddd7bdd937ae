package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"uk.co.dudmesh.bloggr/internal/model"
)

const purpose = "password-reset-salt"

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestSigner(secret string) (*Signer, *clock) {
	c := &clock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	return NewSigner(secret).WithClock(c.Now), c
}

func TestIssueAndVerify(t *testing.T) {
	assert := assert.New(t)
	signer, c := newTestSigner("secret")

	signed, err := signer.Issue(purpose, "alice@example.com")
	require.NoError(t, err)

	t.Run("Fresh", func(t *testing.T) {
		subject, err := signer.Verify(signed, purpose, 600*time.Second)
		assert.Nil(err)
		assert.Equal("alice@example.com", subject)
	})

	t.Run("At max age", func(t *testing.T) {
		c.now = c.now.Add(600 * time.Second)
		subject, err := signer.Verify(signed, purpose, 600*time.Second)
		assert.Nil(err)
		assert.Equal("alice@example.com", subject)
	})

	t.Run("Expired", func(t *testing.T) {
		c.now = c.now.Add(time.Second)
		_, err := signer.Verify(signed, purpose, 600*time.Second)
		assert.ErrorIs(err, model.ErrorTokenExpiredOrInvalid)
	})
}

func TestVerifyCountsWholeSeconds(t *testing.T) {
	assert := assert.New(t)
	signer, c := newTestSigner("secret")
	c.now = c.now.Add(900 * time.Millisecond)

	signed, err := signer.Issue(purpose, "alice@example.com")
	require.NoError(t, err)

	c.now = c.now.Add(599600 * time.Millisecond)
	subject, err := signer.Verify(signed, purpose, 600*time.Second)
	assert.Nil(err)
	assert.Equal("alice@example.com", subject)

	c.now = c.now.Add(time.Second)
	_, err = signer.Verify(signed, purpose, 600*time.Second)
	assert.ErrorIs(err, model.ErrorTokenExpiredOrInvalid)
}

func TestVerifyRejects(t *testing.T) {
	assert := assert.New(t)
	signer, _ := newTestSigner("secret")

	signed, err := signer.Issue(purpose, "alice@example.com")
	require.NoError(t, err)

	t.Run("Wrong purpose", func(t *testing.T) {
		_, err := signer.Verify(signed, "email-confirm-salt", time.Hour)
		assert.ErrorIs(err, model.ErrorTokenExpiredOrInvalid)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		other, _ := newTestSigner("other")
		_, err := other.Verify(signed, purpose, time.Hour)
		assert.ErrorIs(err, model.ErrorTokenExpiredOrInvalid)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := signer.Verify("not-a-token", purpose, time.Hour)
		assert.ErrorIs(err, model.ErrorTokenExpiredOrInvalid)
	})

	t.Run("Issued in the future", func(t *testing.T) {
		future, c := newTestSigner("secret")
		c.now = c.now.Add(time.Hour)
		ahead, err := future.Issue(purpose, "alice@example.com")
		require.NoError(t, err)

		_, err = signer.Verify(ahead, purpose, 2*time.Hour)
		assert.ErrorIs(err, model.ErrorTokenExpiredOrInvalid)
	})

	t.Run("Any altered byte", func(t *testing.T) {
		for i := range signed {
			if signed[i] == '.' {
				continue
			}
			tampered := signed[:i] + string(flip(signed[i])) + signed[i+1:]
			_, err := signer.Verify(tampered, purpose, time.Hour)
			assert.ErrorIs(err, model.ErrorTokenExpiredOrInvalid, "position %d", i)
		}
	})
}

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// flip swaps the most significant bit of a base64url character so the change
// survives decoding even in a segment's final character.
func flip(c byte) byte {
	i := strings.IndexByte(alphabet, c)
	return alphabet[(i+32)%64]
}
