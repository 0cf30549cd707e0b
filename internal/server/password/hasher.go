// Package password implements peppered password hashing and verification.
//
// A hash is produced by running Argon2id over the concatenation of a
// server-side pepper and a SHA-256 prehash of the submitted password. The
// prehash bounds the input length fed to the memory-hard function; the
// pepper comes from the rotating sequence owned by the pepper store. The
// index of the pepper used is recorded next to the hash as a verification
// hint.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Omoju-Mayowa/blogauth/internal/common"
	"golang.org/x/crypto/argon2"
)

// Argon2id cost parameters. Tuning these is a deployment concern; they are
// embedded in every encoded hash, so verification always replays the
// parameters the hash was created with.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024 // KiB
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32

	saltLen = 16
)

// PepperSource provides an immutable snapshot of the pepper sequence,
// newest first. Implemented by the pepper store.
type PepperSource interface {
	List() []string
	Current() string
}

// Hasher mints peppered Argon2id password hashes.
type Hasher struct {
	peppers PepperSource
}

func NewHasher(peppers PepperSource) *Hasher {
	return &Hasher{peppers: peppers}
}

// Hash derives a hash of password under the current pepper and returns the
// encoded hash together with the pepper version used, which is always 0:
// new hashes are always minted under the newest pepper. A random salt makes
// two hashes of the same password differ.
func (h *Hasher) Hash(password string) (string, int, error) {
	current := h.peppers.Current()
	if current == "" {
		return "", 0, fmt.Errorf("%w: pepper store is empty", common.ErrConfiguration)
	}

	salt := common.GenerateRandByteArray(saltLen)
	key := deriveKey(current, prehash(password), salt, params{
		time: argonTime, memory: argonMemory, threads: argonThreads, keyLen: argonKeyLen,
	})

	return encode(salt, key), 0, nil
}

// prehash produces a fixed-length hex digest of the raw password so that
// arbitrarily long inputs cannot inflate the memory-hard function's input.
// It must be applied identically on hash and verify.
func prehash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

type params struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

func deriveKey(pepper, prehashed string, salt []byte, p params) []byte {
	material := []byte(pepper + prehashed)
	return argon2.IDKey(material, salt, p.time, p.memory, p.threads, p.keyLen)
}

// encode renders a PHC-style string:
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<b64 salt>$<b64 key>
func encode(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// decode parses an encoded hash back into its salt, key and parameters.
func decode(encoded string) (salt, key []byte, p params, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("malformed password hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, p, fmt.Errorf("malformed password hash version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, nil, p, fmt.Errorf("malformed password hash parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, p, fmt.Errorf("malformed password hash salt: %w", err)
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, p, fmt.Errorf("malformed password hash key: %w", err)
	}
	p.keyLen = uint32(len(key))

	return salt, key, p, nil
}

// matches reports whether the candidate pepper and prehash reproduce the
// stored key. The comparison is constant-time.
func matches(pepper, prehashed string, salt, key []byte, p params) bool {
	candidate := deriveKey(pepper, prehashed, salt, p)
	return subtle.ConstantTimeCompare(candidate, key) == 1
}
