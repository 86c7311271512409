// Package seal encrypts whole bank containers.
//
// A sealed container is laid out as:
//
//	"PBSEAL" | uint32 header length (big endian) | CBOR header | ciphertext
//
// The header carries the format version, the XChaCha20-Poly1305 nonce and a
// keyed BLAKE3 check value, so a candidate key can be rejected without
// decrypting the payload. The magic, length and header are authenticated as
// additional data.
package seal

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
)

// Version is the version of the sealed layout.
const Version = 1

// KeySize is the size in bytes of a seal key.
const KeySize = chacha20poly1305.KeySize

const maxHeaderSize = 1 << 10

var (
	magic       = []byte("PBSEAL")
	checkDomain = []byte("padbank.seal.check.v1")

	encMode cbor.EncMode
	decMode cbor.DecMode
)

var (
	// ErrNotSealed is returned when the data does not start with a seal header.
	ErrNotSealed = errors.New("seal: not a sealed container")
	// ErrKeyMismatch is returned when a key cannot open a sealed container.
	ErrKeyMismatch = errors.New("seal: key mismatch")
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("seal: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: 16,
		MaxMapPairs:      16,
	}.DecMode()
	if err != nil {
		panic("seal: CBOR decoder initialization failed: " + err.Error())
	}
}

// A Key is a symmetric seal key.
type Key [KeySize]byte

// NewKey returns a key from raw bytes.
func NewKey(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, errors.Errorf("seal: key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Bytes returns a copy of the raw key.
func (k Key) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k[:])
	return b
}

type header struct {
	Version int    `cbor:"1,keyasint"`
	Nonce   []byte `cbor:"2,keyasint"`
	Check   []byte `cbor:"3,keyasint"`
}

// IsSealed reports whether data starts with a seal header.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Encrypt seals plaintext with key.
func Encrypt(plaintext []byte, key Key) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "seal: cipher")
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "seal: nonce")
	}

	check, err := checkValue(key, nonce)
	if err != nil {
		return nil, err
	}
	hdr, err := encMode.Marshal(header{
		Version: Version,
		Nonce:   nonce,
		Check:   check,
	})
	if err != nil {
		return nil, errors.Wrap(err, "seal: header")
	}

	prefix := make([]byte, len(magic)+4, len(magic)+4+len(hdr)+len(plaintext)+aead.Overhead())
	copy(prefix, magic)
	binary.BigEndian.PutUint32(prefix[len(magic):], uint32(len(hdr)))
	prefix = append(prefix, hdr...)

	return aead.Seal(prefix, nonce, plaintext, prefix), nil
}

// Decrypt opens a sealed container with key.
func Decrypt(data []byte, key Key) ([]byte, error) {
	h, aad, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if !matches(h, key) {
		return nil, ErrKeyMismatch
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "seal: cipher")
	}

	plaintext, err := aead.Open(nil, h.Nonce, data[len(aad):], aad)
	if err != nil {
		return nil, ErrKeyMismatch
	}
	return plaintext, nil
}

// QuickMatch reports whether key is the one data was sealed with,
// looking only at the header.
func QuickMatch(data []byte, key Key) bool {
	h, _, err := readHeader(data)
	if err != nil {
		return false
	}
	return matches(h, key)
}

func matches(h *header, key Key) bool {
	check, err := checkValue(key, h.Nonce)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(check, h.Check) == 1
}

func readHeader(data []byte) (*header, []byte, error) {
	if !IsSealed(data) || len(data) < len(magic)+4 {
		return nil, nil, ErrNotSealed
	}

	size := int(binary.BigEndian.Uint32(data[len(magic):]))
	end := len(magic) + 4 + size
	if size == 0 || size > maxHeaderSize || end > len(data) {
		return nil, nil, errors.Wrap(ErrNotSealed, "truncated header")
	}

	var h header
	if err := decMode.Unmarshal(data[len(magic)+4:end], &h); err != nil {
		return nil, nil, errors.Wrap(ErrNotSealed, err.Error())
	}
	if h.Version != Version {
		return nil, nil, errors.Errorf("seal: unsupported version %d", h.Version)
	}
	if len(h.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, nil, errors.Wrap(ErrNotSealed, "invalid nonce")
	}
	return &h, data[:end], nil
}

func checkValue(key Key, nonce []byte) ([]byte, error) {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "seal: check")
	}
	h.Write(checkDomain)
	h.Write(nonce)
	return h.Sum(nil), nil
}
