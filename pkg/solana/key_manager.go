package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

var (
	// ErrEmptyKeyFile is returned when the key file has no content
	ErrEmptyKeyFile = errors.New("key file is empty")
	// ErrInvalidKeyLength is returned when the decoded secret key is not 64 bytes
	ErrInvalidKeyLength = errors.New("invalid private key length")
	// ErrKeyMismatch is returned when the public half of the secret key does not match its seed
	ErrKeyMismatch = errors.New("public key does not match private key")
)

// LoadKeypairFile reads a keypair file written by `solana-keygen` (a JSON
// array of 64 byte values). A base58 encoded secret key, bare or as a JSON
// string, is accepted as well.
func LoadKeypairFile(path string) (types.Account, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to read key file: %w", err)
	}
	account, err := ParseKeypair(data)
	if err != nil {
		return types.Account{}, fmt.Errorf("invalid key file %s: %w", path, err)
	}
	return account, nil
}

// ParseKeypair decodes the content of a keypair file
func ParseKeypair(data []byte) (types.Account, error) {
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 {
		return types.Account{}, ErrEmptyKeyFile
	}

	var key []byte
	switch raw[0] {
	case '[':
		var values []int
		if err := json.Unmarshal(raw, &values); err != nil {
			return types.Account{}, fmt.Errorf("failed to parse key file: %w", err)
		}
		key = make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return types.Account{}, fmt.Errorf("key byte %d out of range: %d", i, v)
			}
			key[i] = byte(v)
		}
	case '"':
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return types.Account{}, fmt.Errorf("failed to parse key file: %w", err)
		}
		decoded, err := base58.Decode(encoded)
		if err != nil {
			return types.Account{}, fmt.Errorf("failed to decode base58 key: %w", err)
		}
		key = decoded
	default:
		decoded, err := base58.Decode(string(raw))
		if err != nil {
			return types.Account{}, fmt.Errorf("failed to decode base58 key: %w", err)
		}
		key = decoded
	}

	return AccountFromPrivateKey(key)
}

// AccountFromPrivateKey builds an account from a 64 byte ed25519 secret key
// and checks that its public half is the one derived from the seed.
func AccountFromPrivateKey(key []byte) (types.Account, error) {
	if len(key) != ed25519.PrivateKeySize {
		return types.Account{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(key), ed25519.PrivateKeySize)
	}

	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return types.Account{}, ErrKeyMismatch
	}

	account, err := types.AccountFromBytes(key)
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to create account from private key: %w", err)
	}
	return account, nil
}

// ExpandPath replaces a leading ~ with the user's home directory
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
