package keyring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ParsePrivateKey accepts the two key formats users paste: a base58 string
// encoding 64 bytes, or a JSON array of 64 byte values (the keypair-file
// format). The raw input is what gets sealed; the parsed key only serves
// validation and address derivation.
func ParsePrivateKey(raw string) (solana.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty private key")
	}

	if strings.HasPrefix(raw, "[") {
		var vals []int
		if err := json.Unmarshal([]byte(raw), &vals); err != nil {
			return nil, fmt.Errorf("parse key array: %w", err)
		}
		if len(vals) != 64 {
			return nil, fmt.Errorf("key array has %d elements, want 64", len(vals))
		}
		key := make([]byte, 64)
		for i, v := range vals {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("key array element %d out of byte range", i)
			}
			key[i] = byte(v)
		}
		return solana.PrivateKey(key), nil
	}

	key, err := base58.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode base58 key: %w", err)
	}
	if len(key) != 64 {
		return nil, fmt.Errorf("key is %d bytes, want 64", len(key))
	}
	return solana.PrivateKey(key), nil
}

// DeriveAddress validates raw and returns the wallet's public address.
func DeriveAddress(raw string) (string, error) {
	key, err := ParsePrivateKey(raw)
	if err != nil {
		return "", err
	}
	return key.PublicKey().String(), nil
}
