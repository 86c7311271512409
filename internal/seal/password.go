package seal

import (
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used to stretch passwords.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var saltDomain = []byte("padbank.seal.salt.v1:")

// PasswordKey derives a key from a password. The salt is any stable string
// bound to the password, such as a bank identifier.
func PasswordKey(password, salt string) Key {
	s := blake3.Sum256(append(append([]byte{}, saltDomain...), salt...))

	var k Key
	copy(k[:], argon2.IDKey([]byte(password), s[:16], argonTime, argonMemory, argonThreads, KeySize))
	return k
}
