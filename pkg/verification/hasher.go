package verification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a token into the form stored on the attempt and checks candidates against it.
type Hasher interface {
	Hash(token string) (string, error)
	Compare(hash, token string) bool
}

// HMACHasher stores an HMAC-SHA256 of the token under a server-side key.
type HMACHasher struct {
	key []byte
}

func NewHMACHasher(key []byte) *HMACHasher {
	return &HMACHasher{key: key}
}

func (h *HMACHasher) sum(token string) []byte {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(token))

	return mac.Sum(nil)
}

func (h *HMACHasher) Hash(token string) (string, error) {
	return hex.EncodeToString(h.sum(token)), nil
}

// Compare runs in constant time with respect to the token.
func (h *HMACHasher) Compare(hash, token string) bool {
	stored, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	return hmac.Equal(stored, h.sum(token))
}

// BcryptHasher stores PINs with bcrypt.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pin: %w", err)
	}

	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
