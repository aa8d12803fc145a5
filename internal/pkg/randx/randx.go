/*
Package randx generates identifiers from cryptographically secure randomness.

User identities are UUID v4 values; connection ids are short Base62 strings used to
correlate log lines for one WebSocket session.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// ConnIDLength is the fixed length of a generated connection id.
	ConnIDLength = 10
)

// UserID returns a fresh UUID v4 for a newly joined user.
func UserID() uuid.UUID {
	return uuid.New()
}

// ConnID returns a Base62 connection id of length ConnIDLength.
func ConnID() (string, error) {
	result := make([]byte, ConnIDLength)

	for i := 0; i < ConnIDLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for connection id: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// MustConnID is ConnID for callers that treat an exhausted entropy source as fatal.
func MustConnID() string {
	id, err := ConnID()
	if err != nil {
		panic(err)
	}
	return id
}

// isValidConnID reports whether id has the shape produced by ConnID.
func isValidConnID(id string) bool {
	if len(id) != ConnIDLength {
		return false
	}

	for _, char := range id {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return true
}
