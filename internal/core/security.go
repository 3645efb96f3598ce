// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var ErrMalformedHash = errors.New("malformed password hash")

const saltLength = 16

// Argon2Params are the argon2id cost settings embedded in every encoded
// hash, so stored hashes stay verifiable after the settings change.
type Argon2Params struct {
	MemoryKiB  uint32
	Iterations uint32
	Threads    uint8
	KeyLen     uint32
}

var DefaultArgon2 = Argon2Params{
	MemoryKiB:  64 * 1024,
	Iterations: 1,
	Threads:    4,
	KeyLen:     32,
}

// PasswordHasher produces and checks PHC-style argon2id strings.
type PasswordHasher struct {
	params Argon2Params

	dummyOnce sync.Once
	dummy     string
}

// NewPasswordHasher fills zero fields from DefaultArgon2.
func NewPasswordHasher(p Argon2Params) *PasswordHasher {
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultArgon2.MemoryKiB
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultArgon2.Iterations
	}
	if p.Threads == 0 {
		p.Threads = DefaultArgon2.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultArgon2.KeyLen
	}
	return &PasswordHasher{params: p}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	enc := encodedHash{
		params: h.params,
		salt:   salt,
		key:    derive(password, salt, h.params),
	}
	return enc.String(), nil
}

// Verify reports whether password matches encoded. An empty encoded value
// still runs a full derivation against a throwaway hash so unknown
// accounts cost the same as known ones. When the stored hash used other
// cost settings, rehash carries a fresh hash to persist.
func (h *PasswordHasher) Verify(password, encoded string) (ok bool, rehash string, err error) {
	if encoded == "" {
		h.compare(password, h.dummyHash())
		return false, "", nil
	}

	enc, err := parseHash(encoded)
	if err != nil {
		return false, "", err
	}

	if !h.compare(password, enc) {
		return false, "", nil
	}

	if enc.params == h.params {
		return true, "", nil
	}

	fresh, err := h.Hash(password)
	if err != nil {
		//nolint:nilerr // the password matched; upgrading the hash is optional
		return true, "", nil
	}
	return true, fresh, nil
}

func (h *PasswordHasher) compare(password string, enc encodedHash) bool {
	other := derive(password, enc.salt, enc.params)
	return subtle.ConstantTimeCompare(enc.key, other) == 1
}

func (h *PasswordHasher) dummyHash() encodedHash {
	h.dummyOnce.Do(func() {
		salt := make([]byte, saltLength)
		_, _ = rand.Read(salt)
		h.dummy = encodedHash{
			params: h.params,
			salt:   salt,
			key:    derive("planejar-timing-guard", salt, h.params),
		}.String()
	})

	enc, _ := parseHash(h.dummy)
	return enc
}

func derive(password string, salt []byte, p Argon2Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Threads, p.KeyLen)
}

type encodedHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func (e encodedHash) String() string {
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		e.params.MemoryKiB,
		e.params.Iterations,
		e.params.Threads,
		base64.RawStdEncoding.EncodeToString(e.salt),
		base64.RawStdEncoding.EncodeToString(e.key),
	)
}

// parseHash reads "$argon2id$v=19$m=..,t=..,p=..$salt$key".
func parseHash(s string) (encodedHash, error) {
	var enc encodedHash

	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" {
		return enc, ErrMalformedHash
	}
	if parts[1] != "argon2id" {
		return enc, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return enc, fmt.Errorf("%w: version %q", ErrMalformedHash, parts[2])
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&enc.params.MemoryKiB, &enc.params.Iterations, &enc.params.Threads); err != nil {
		return enc, fmt.Errorf("%w: params %q", ErrMalformedHash, parts[3])
	}

	var err error
	if enc.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return enc, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if enc.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(enc.key) == 0 {
		return enc, fmt.Errorf("%w: key", ErrMalformedHash)
	}

	//nolint:gosec // G115: argon2 keys are a few dozen bytes
	enc.params.KeyLen = uint32(len(enc.key))

	return enc, nil
}
