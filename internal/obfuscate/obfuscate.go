// Package obfuscate implements the repeating-key XOR used to keep private
// keys out of plain sight in environment files. It is obfuscation, not
// encryption: anyone holding the key string can reverse it.
package obfuscate

import (
	"encoding/base64"
	"errors"
	"fmt"
)

var errEmptyKey = errors.New("xor key must not be empty")

// XOR applies key to data byte by byte, repeating the key as needed.
// Applying it twice with the same key returns the original input.
func XOR(data, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, errEmptyKey
	}

	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}

	return out, nil
}

// Encode XORs plain with key and returns it base64 encoded.
func Encode(plain []byte, key string) (string, error) {
	masked, err := XOR(plain, []byte(key))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(masked), nil
}

// Decode reverses Encode.
func Decode(encoded, key string) ([]byte, error) {
	masked, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	return XOR(masked, []byte(key))
}
