package user

import (
	"os"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	// Hashing at production cost makes the suite needlessly slow.
	hashCost = bcrypt.MinCost

	os.Exit(m.Run())
}
