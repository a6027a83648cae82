package services

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
)

// streamIV is the fixed initial counter of every audio stream file.
var streamIV = mustHex("72e067fbddcbcf77ebe8bc643f630d93")

// AudioKeySize is the length of an audio key in bytes.
const AudioKeySize = 16

// DecryptStream deciphers data with AES-128-CTR under key and the fixed stream IV.
func DecryptStream(key, data []byte) ([]byte, error) {
	if len(key) != AudioKeySize {
		return nil, fmt.Errorf("invalid audio key length %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, len(data))
	cipher.NewCTR(block, streamIV).XORKeyStream(out, data)
	return out, nil
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
