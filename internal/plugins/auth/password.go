package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// kdfParams are the argon2id settings written into new hashes. Existing
// hashes carry their own parameters.
type kdfParams struct {
	memoryKiB uint32
	passes    uint32
	lanes     uint8
	keyLen    uint32
	saltLen   int
}

var defaultKDF = kdfParams{memoryKiB: 64 * 1024, passes: 3, lanes: 4, keyLen: 32, saltLen: 16}

var b64 = base64.RawStdEncoding

// hashPassword encodes password in the PHC argon2id format.
func hashPassword(password string) (string, error) {
	p := defaultKDF
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("reading salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.passes, p.memoryKiB, p.lanes, p.keyLen)

	return strings.Join([]string{
		"",
		"argon2id",
		fmt.Sprintf("v=%d", argon2.Version),
		fmt.Sprintf("m=%d,t=%d,p=%d", p.memoryKiB, p.passes, p.lanes),
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	}, "$"), nil
}

// verifyPassword reports whether password matches encoded. Malformed
// hashes never match.
func verifyPassword(password, encoded string) bool {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" {
		return false
	}

	var p kdfParams
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memoryKiB, &p.passes, &p.lanes); err != nil {
		return false
	}
	salt, err := b64.DecodeString(fields[4])
	if err != nil {
		return false
	}
	want, err := b64.DecodeString(fields[5])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, p.passes, p.memoryKiB, p.lanes, uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1
}
