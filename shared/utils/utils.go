package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

var (
	cryptoReader io.Reader = rand.Reader
	randReader             = cryptoReader
)

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 10

	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(randReader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("generate %s id: %w", prefix, err)
		}
		result[i] = charset[num.Int64()]
	}

	return fmt.Sprintf("%s-%s", prefix, string(result)), nil
}
