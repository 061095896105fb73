package delivery

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateHMACSignature generates an HMAC SHA256 signature for the payload
// Returns the signature in the format: sha256=<hex_encoded_hmac>
func GenerateHMACSignature(payload []byte, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(payload); err != nil {
		return "", fmt.Errorf("failed to write payload to HMAC: %w", err)
	}

	signature := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("sha256=%s", signature), nil
}
