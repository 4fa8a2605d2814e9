package verification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// TokenGenerator produces the plain code sent to the subject.
type TokenGenerator interface {
	Generate(key models.AttemptKey, at time.Time) (string, error)
}

// HOTPGenerator derives a six digit HOTP code. The secret is specific to the
// attempt key and the counter is the issue time, so reissues never repeat a code.
type HOTPGenerator struct {
	secret []byte
}

func NewHOTPGenerator(secret []byte) *HOTPGenerator {
	return &HOTPGenerator{secret: secret}
}

func (g *HOTPGenerator) Generate(key models.AttemptKey, at time.Time) (string, error) {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(key.SubjectID + "\x00" + string(key.ServiceType) + "\x00" + key.ActionType))

	keySecret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(mac.Sum(nil))

	code, err := hotp.GenerateCodeCustom(keySecret, uint64(at.UnixNano()), hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate hotp code: %w", err)
	}

	return code, nil
}
