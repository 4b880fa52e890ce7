package utils

import (
	"time"

	"github.com/pquerna/otp/totp"
)

const totpIssuer = "QWERTYS"

// GenerateTOTPSecret returns the shared secret and the otpauth:// URL shown as a QR code.
func GenerateTOTPSecret(email string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: email,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

func VerifyTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}

// GenerateTOTPCode computes the current code for secret. Used by tests and
// by support tooling.
func GenerateTOTPCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCode(secret, at)
}
