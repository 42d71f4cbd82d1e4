package session

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const saltLength = 16

// argonParams are the Argon2id cost parameters.
var argonParams = struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}{
	time:    1,
	memory:  64 * 1024,
	threads: 4,
	keyLen:  32,
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func hashPassword(password string, salt []byte) []byte {
	p := argonParams
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func verifyPassword(password string, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(hashPassword(password, salt), hash) == 1
}
