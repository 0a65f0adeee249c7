// Package tupwcrypto is the TUPW core encryption engine: key derivation
// from split material, authenticated encryption for wire format 6,
// decryption of formats 1 through 6, and the lifecycle of an Engine
// instance.
//
// An Engine is constructed from a program-held HMAC key and one or more
// externally supplied source-byte sequences. It derives a 256-bit master
// secret via HMAC-SHA-256, splits it into a 128-bit encryption key and a
// 128-bit MAC key, and holds both inside protectedbytes.Bytes for the
// lifetime of the instance.
package tupwcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dbsystel/tupw-go/base32ss"
	"github.com/dbsystel/tupw-go/blind"
	"github.com/dbsystel/tupw-go/ctrmode"
	"github.com/dbsystel/tupw-go/entropy"
	"github.com/dbsystel/tupw-go/protectedbytes"
	"github.com/dbsystel/tupw-go/randpad"
	"github.com/dbsystel/tupw-go/rng"
	"github.com/dbsystel/tupw-go/secbytes"
	"github.com/dbsystel/tupw-go/tailpad"
	"github.com/dbsystel/tupw-go/tupwerr"
)

const (
	minHMACKeyLen = 14
	maxHMACKeyLen = 32

	minSourceBytesLen = 100
	maxSourceBytesLen = 10_000_000

	minInformationBits = 128

	// writeFormatID is the only format this engine ever writes.
	writeFormatID = 6

	blindMinLen = aes.BlockSize + 1
)

// subject key-derivation salts: prefix "Tu", suffix "pW". The HMAC input
// is always baseKeyHalf || prefixSalt || subject || suffixSalt.
var (
	subjectSaltPrefix = []byte{0x54, 0x75}
	subjectSaltSuffix = []byte{0x70, 0x57}
)

// Engine is a constructed TUPW encryption/decryption context. It is safe
// for concurrent use by multiple goroutines; disposal is serialized
// against in-flight operations via an internal mutex.
type Engine struct {
	mu sync.Mutex

	valid  bool
	encKey *protectedbytes.Bytes
	macKey *protectedbytes.Bytes
}

// New constructs an Engine from a program-held HMAC key and one or more
// externally supplied source-byte sequences.
func New(hmacKey []byte, sourceBytes ...[]byte) (*Engine, error) {
	if len(hmacKey) < minHMACKeyLen {
		return nil, tupwerr.New(tupwerr.Argument, "HMAC key length %d is less than %d", len(hmacKey), minHMACKeyLen)
	}
	if len(hmacKey) > maxHMACKeyLen {
		return nil, tupwerr.New(tupwerr.Argument, "HMAC key length %d is larger than %d", len(hmacKey), maxHMACKeyLen)
	}

	if len(sourceBytes) == 0 {
		return nil, tupwerr.New(tupwerr.Argument, "at least one source byte array is required")
	}

	calc := entropy.New()
	totalLen := 0
	for i, sb := range sourceBytes {
		if len(sb) == 0 {
			return nil, tupwerr.New(tupwerr.Argument, "source byte array %d is empty", i)
		}
		calc.Add(sb)
		totalLen += len(sb)
	}

	if totalLen < minSourceBytesLen {
		return nil, tupwerr.New(tupwerr.Argument, "aggregate source byte length %d is less than %d", totalLen, minSourceBytesLen)
	}
	if totalLen > maxSourceBytesLen {
		return nil, tupwerr.New(tupwerr.Argument, "aggregate source byte length %d is larger than %d", totalLen, maxSourceBytesLen)
	}

	if calc.InformationBits() < minInformationBits {
		if calc.IsAllConstant() {
			return nil, tupwerr.New(tupwerr.Argument, "source bytes carry no information (constant value)")
		}
		return nil, tupwerr.New(tupwerr.Argument, "source bytes carry insufficient information (%d bits, need %d)", calc.InformationBits(), minInformationBits)
	}

	concat := make([]byte, 0, totalLen)
	for _, sb := range sourceBytes {
		concat = append(concat, sb...)
	}
	defer secbytes.Zero(concat)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(concat)
	master := mac.Sum(nil)
	defer secbytes.Zero(master)

	encKeyBytes := master[:16]
	macKeyBytes := master[16:32]

	encKey, err := protectedbytes.New(encKeyBytes)
	if err != nil {
		return nil, err
	}
	macKey, err := protectedbytes.New(macKeyBytes)
	if err != nil {
		encKey.Dispose()
		return nil, err
	}

	return &Engine{valid: true, encKey: encKey, macKey: macKey}, nil
}

// Close disposes of the engine, zeroizing both protected key halves. It
// is idempotent and satisfies io.Closer.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.valid {
		return nil
	}
	e.encKey.Dispose()
	e.macKey.Dispose()
	e.valid = false
	return nil
}

func (e *Engine) checkValid() error {
	if !e.valid {
		return tupwerr.New(tupwerr.UseAfterDispose, "engine has been disposed")
	}
	return nil
}

// deriveWithSubject computes HMAC-SHA-256(hmacKey, baseKeyHalf ||
// "Tu" || subject || "pW"), the key-derivation rule used throughout
// TUPW whenever a non-empty subject is supplied.
func deriveWithSubject(hmacKey, baseKeyHalf []byte, subject string) []byte {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(baseKeyHalf)
	mac.Write(subjectSaltPrefix)
	mac.Write([]byte(subject))
	mac.Write(subjectSaltSuffix)
	return mac.Sum(nil)
}

func computeMAC(key []byte, formatID byte, iv, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte{formatID})
	mac.Write(iv)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// Encrypt transforms plaintext into a self-describing, integrity-
// protected, printable format-6 string bound to subject (which may be
// empty).
func (e *Engine) Encrypt(plaintext []byte, subject string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkValid(); err != nil {
		return "", err
	}

	encKeyBytes, err := e.encKey.Get()
	if err != nil {
		return "", err
	}
	defer secbytes.Zero(encKeyBytes)

	macKeyBytes, err := e.macKey.Get()
	if err != nil {
		return "", err
	}
	defer secbytes.Zero(macKeyBytes)

	ke := workingKey(macKeyBytes, encKeyBytes, subject)
	defer secbytes.Zero(ke)

	iv := make([]byte, aes.BlockSize)
	rng.Fill(iv)

	blinded, err := blind.Build(plaintext, blindMinLen)
	if err != nil {
		return "", err
	}
	defer secbytes.Zero(blinded)

	padded := randpad.Add(blinded, aes.BlockSize)
	defer secbytes.Zero(padded)

	block, err := aes.NewCipher(ke)
	if err != nil {
		return "", tupwerr.Wrap(tupwerr.InternalInvariantViolated, err, "failed to initialize encryption cipher")
	}

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	km := workingKey(encKeyBytes, macKeyBytes, subject)
	defer secbytes.Zero(km)

	macField := computeMAC(km, writeFormatID, iv, ciphertext)
	defer secbytes.Zero(macField)

	var sb strings.Builder
	sb.WriteByte('0' + writeFormatID)
	sb.WriteByte(base32ss.Separator)
	sb.WriteString(base32ss.Encode(iv))
	sb.WriteByte(base32ss.Separator)
	sb.WriteString(base32ss.Encode(ciphertext))
	sb.WriteByte(base32ss.Separator)
	sb.WriteString(base32ss.Encode(macField))

	return sb.String(), nil
}

// workingKey derives the format-6 working key used for either the
// encryption or the MAC half: empty subject returns a copy of
// baseKeyHalf itself, non-empty subject returns the HMAC-derived key.
func workingKey(hmacKey, baseKeyHalf []byte, subject string) []byte {
	if subject == "" {
		return append([]byte(nil), baseKeyHalf...)
	}
	return deriveWithSubject(hmacKey, baseKeyHalf, subject)
}

type formatSpec struct {
	separator    byte
	legacyB64    bool
	cipherMode   string // "cfb", "ctr", "cbc"
	framing      string // "tailpad", "blind"
	macAlwaysDef bool   // MAC key is always the plain mac key, ignoring subject (format 4's bug, preserved for formats 1-4)
}

var formatSpecs = map[int]formatSpec{
	1: {separator: '$', legacyB64: true, cipherMode: "cfb", framing: "tailpad", macAlwaysDef: true},
	2: {separator: '$', legacyB64: true, cipherMode: "ctr", framing: "tailpad", macAlwaysDef: true},
	3: {separator: '$', legacyB64: true, cipherMode: "ctr", framing: "blind", macAlwaysDef: true},
	4: {separator: '$', legacyB64: true, cipherMode: "cbc", framing: "blind", macAlwaysDef: true},
	5: {separator: '$', legacyB64: true, cipherMode: "cbc", framing: "blind", macAlwaysDef: false},
	6: {separator: base32ss.Separator, legacyB64: false, cipherMode: "cbc", framing: "blind", macAlwaysDef: false},
}

// Decrypt reverses Encrypt (or decrypts a legacy format 1-5 string),
// verifying the subject binding along the way.
func (e *Engine) Decrypt(encryptionString string, subject string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkValid(); err != nil {
		return nil, err
	}

	if len(encryptionString) == 0 {
		return nil, tupwerr.New(tupwerr.Argument, "empty encryption string")
	}

	c := encryptionString[0]
	if c < '1' || c > '6' {
		return nil, tupwerr.New(tupwerr.Argument, "unknown format id %q", c)
	}
	formatID := int(c - '0')
	spec := formatSpecs[formatID]

	parts := strings.Split(encryptionString, string(spec.separator))
	if len(parts) != 4 || parts[0] != string(c) {
		return nil, tupwerr.New(tupwerr.Argument, "malformed encryption string")
	}

	decode := base32ss.Decode
	if spec.legacyB64 {
		decode = base32ss.DecodeLegacyBase64
	}

	iv, err := decode(parts[1])
	if err != nil {
		return nil, tupwerr.Wrap(tupwerr.Argument, err, "invalid IV encoding")
	}
	ciphertext, err := decode(parts[2])
	if err != nil {
		return nil, tupwerr.Wrap(tupwerr.Argument, err, "invalid ciphertext encoding")
	}
	macField, err := decode(parts[3])
	if err != nil {
		return nil, tupwerr.Wrap(tupwerr.Argument, err, "invalid MAC encoding")
	}

	encKeyBytes, err := e.encKey.Get()
	if err != nil {
		return nil, err
	}
	defer secbytes.Zero(encKeyBytes)

	macKeyBytes, err := e.macKey.Get()
	if err != nil {
		return nil, err
	}
	defer secbytes.Zero(macKeyBytes)

	var km []byte
	if spec.macAlwaysDef {
		km = append([]byte(nil), macKeyBytes...)
	} else {
		km = workingKey(encKeyBytes, macKeyBytes, subject)
	}
	defer secbytes.Zero(km)

	expectedMac := computeMAC(km, byte(formatID), iv, ciphertext)
	defer secbytes.Zero(expectedMac)

	if !secbytes.ConstantTimeEqual(expectedMac, macField) {
		return nil, tupwerr.New(tupwerr.Integrity, "MAC verification failed")
	}

	ke := workingKey(macKeyBytes, encKeyBytes, subject)
	defer secbytes.Zero(ke)

	block, err := aes.NewCipher(ke)
	if err != nil {
		return nil, tupwerr.Wrap(tupwerr.InternalInvariantViolated, err, "failed to initialize decryption cipher")
	}

	var decrypted []byte
	switch spec.cipherMode {
	case "cfb":
		if len(iv) != block.BlockSize() {
			return nil, tupwerr.New(tupwerr.Argument, "IV length %d does not match block size %d", len(iv), block.BlockSize())
		}
		decrypted = make([]byte, len(ciphertext))
		cipher.NewCFBDecrypter(block, iv).XORKeyStream(decrypted, ciphertext)
	case "ctr":
		decrypted, err = ctrmode.Stream(block, iv, ciphertext)
		if err != nil {
			return nil, err
		}
	case "cbc":
		if len(iv) != block.BlockSize() {
			return nil, tupwerr.New(tupwerr.Argument, "IV length %d does not match block size %d", len(iv), block.BlockSize())
		}
		if len(ciphertext)%block.BlockSize() != 0 {
			return nil, tupwerr.New(tupwerr.Argument, "ciphertext length %d is not a multiple of the block size", len(ciphertext))
		}
		decrypted = make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, ciphertext)
	default:
		return nil, tupwerr.New(tupwerr.InternalInvariantViolated, "unhandled cipher mode %q", spec.cipherMode)
	}
	defer secbytes.Zero(decrypted)

	var plaintext []byte
	switch spec.framing {
	case "tailpad":
		plaintext, err = tailpad.Remove(decrypted, block.BlockSize())
	case "blind":
		plaintext, err = blind.Unblind(decrypted)
	default:
		return nil, tupwerr.New(tupwerr.InternalInvariantViolated, "unhandled framing %q", spec.framing)
	}
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}

// EncryptString is the UTF-8 string convenience overload of Encrypt.
func (e *Engine) EncryptString(plaintext string, subject string) (string, error) {
	if !utf8.ValidString(plaintext) {
		return "", tupwerr.New(tupwerr.Argument, "plaintext is not valid UTF-8")
	}
	return e.Encrypt([]byte(plaintext), subject)
}

// DecryptString is the UTF-8 string convenience overload of Decrypt. It
// fails with tupwerr.Argument if the decrypted bytes are not valid UTF-8.
func (e *Engine) DecryptString(encryptionString string, subject string) (string, error) {
	b, err := e.Decrypt(encryptionString, subject)
	if err != nil {
		return "", err
	}
	defer secbytes.Zero(b)

	if !utf8.Valid(b) {
		return "", tupwerr.New(tupwerr.Argument, "decrypted data is not valid UTF-8")
	}
	return string(b), nil
}
