package xid

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func New() string {
	return uuid.NewString()
}

// Barcode returns the last 15 hex characters of a random uuid.
func Barcode() string {
	raw := compact()
	return raw[len(raw)-15:]
}

// Serial prefixes the last 9 hex characters of a random uuid with the first
// three letters of the manufacturer, upper-cased.
func Serial(manufacturer string) string {
	prefix := strings.ToUpper(strings.TrimSpace(manufacturer))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	raw := compact()
	return prefix + raw[len(raw)-9:]
}

// Token returns n random bytes hex-encoded.
func Token(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func compact() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
