// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

const privateKeyLength = 64

// Wallet представляет кошелёк Solana.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey
}

// NewWallet создаёт новый кошелёк из base58-encoded приватного ключа.
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	return NewWalletFromBytes(privateKeyBytes)
}

// NewWalletFromBytes создаёт кошелёк из 64 байт секретного ключа (seed + public key).
func NewWalletFromBytes(privateKeyBytes []byte) (*Wallet, error) {
	if len(privateKeyBytes) != privateKeyLength {
		return nil, fmt.Errorf("invalid private key length: expected %d bytes, got %d", privateKeyLength, len(privateKeyBytes))
	}
	// вторая половина ключа – публичный ключ; сверяем его с ключом, выведенным из seed
	derived := ed25519.NewKeyFromSeed(privateKeyBytes[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], privateKeyBytes[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("private key does not match embedded public key")
	}

	privateKey := make(solana.PrivateKey, privateKeyLength)
	copy(privateKey, privateKeyBytes)
	publicKey := privateKey.PublicKey()
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  publicKey,
	}, nil
}

// LoadWallet читает ключ из файла: JSON-массив байт, как его пишет solana-keygen,
// либо строку base58.
func LoadWallet(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return ParseWallet(data)
}

// ParseWallet разбирает содержимое файла ключа.
func ParseWallet(data []byte) (*Wallet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("key file is empty")
	}

	if data[0] == '[' {
		// []byte из JSON декодируется как base64, поэтому читаем числа явно.
		var numbers []int
		if err := json.Unmarshal(data, &numbers); err != nil {
			return nil, fmt.Errorf("failed to parse key byte array: %w", err)
		}
		raw := make([]byte, 0, len(numbers))
		for i, n := range numbers {
			if n < 0 || n > 255 {
				return nil, fmt.Errorf("key byte %d out of range: %d", i, n)
			}
			raw = append(raw, byte(n))
		}
		return NewWalletFromBytes(raw)
	}

	return NewWallet(string(data))
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
