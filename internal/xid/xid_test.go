package xid

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIsUUID(t *testing.T) {
	_, err := uuid.Parse(New())
	require.NoError(t, err)
}

func TestBarcodeFormat(t *testing.T) {
	code := Barcode()
	require.Regexp(t, regexp.MustCompile(`^[0-9a-f]{15}$`), code)
	require.NotEqual(t, code, Barcode())
}

func TestSerialFormat(t *testing.T) {
	require.Regexp(t, `^APP[0-9a-f]{9}$`, Serial("apple"))
	require.Regexp(t, `^LG[0-9a-f]{9}$`, Serial("lg"))
	require.Regexp(t, `^[0-9a-f]{9}$`, Serial(""))
}

func TestToken(t *testing.T) {
	token, err := Token(32)
	require.NoError(t, err)
	require.Len(t, token, 64)
}
