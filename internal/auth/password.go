package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost of 8 keeps login fast on small nodes
const bcryptCost = 8

// HashPassword generates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if the provided password matches the hash
func VerifyPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("activation-backend"), bcryptCost)
	return hash
})

// BurnVerify spends the same time as VerifyPassword for an unknown account
// so login latency does not reveal which emails exist
func BurnVerify(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
}
