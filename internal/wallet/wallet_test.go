package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWallet(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	w, err := NewWallet(base58.Encode(key))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)
	assert.Equal(t, key.PublicKey().String(), w.String())

	_, err = NewWallet("not-base58-0OIl")
	assert.Error(t, err)

	_, err = NewWallet(base58.Encode([]byte{1, 2, 3}))
	assert.ErrorContains(t, err, "invalid private key length")
}

func TestNewWalletFromBytesRejectsMismatchedPublicKey(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	broken := make([]byte, 64)
	copy(broken, key)
	broken[63] ^= 0xFF

	_, err = NewWalletFromBytes(broken)
	assert.Error(t, err)
}

func TestLoadWalletKeygenJSON(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	numbers := make([]int, len(key))
	for i, b := range key {
		numbers[i] = int(b)
	}
	data, err := json.Marshal(numbers)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "authority.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	w, err := LoadWallet(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)
}

func TestLoadWalletBase58File(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.txt")
	require.NoError(t, os.WriteFile(path, []byte(base58.Encode(key)+"\n"), 0o600))

	w, err := LoadWallet(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)
}

func TestParseWalletErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "  "},
		{"bad json", "[1,2,"},
		{"byte out of range", "[256]"},
		{"short array", "[1,2,3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWallet([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := LoadWallet(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
