// Package protectedbytes stores a secret byte sequence such that no secret
// byte sits at a predictable position or carries its true value in
// memory. It raises the bar against casual process-memory inspection,
// memory dumps, and accidental logging; it is NOT cryptographic
// protection against an attacker with full process-memory read access.
//
// The scheme: storage is padded to a multiple of 50 bytes and initialized
// to random noise. A per-instance random AES-128 key drives a small block
// cipher "masker" that, given a position, yields a 1-byte mask (used to
// obscure the byte stored at that physical position) and a 4-byte mask
// (used to obscure index-table entries and the stored length/start
// offset). The logical byte at offset j lives at a physical offset chosen
// by a random permutation of the storage, itself indexed through a
// randomized start offset so that two instances holding the same secret
// place it differently.
package protectedbytes

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"sync"

	"github.com/dbsystel/tupw-go/rng"
	"github.com/dbsystel/tupw-go/secbytes"
	"github.com/dbsystel/tupw-go/tupwerr"
)

const (
	storageBlockSize = 50

	// Fixed negative pseudo-positions used to mask the stored length and
	// start offset. Any implementation-chosen constants work here as
	// long as they never collide with a real physical position (which
	// is always >= 0).
	lengthPos = -1
	startPos  = -2
)

// Bytes is a masked-index protected byte array.
type Bytes struct {
	mu sync.Mutex

	valid bool

	block cipher.Block
	key   []byte

	storage    []byte
	indexTable []uint32 // length S, each entry XOR-masked by intMask(i)

	lengthMasked      uint32
	startOffsetMasked uint32
}

// New copies data into a freshly constructed protected array. The caller
// should zeroize data after New returns if it no longer needs a plaintext
// copy.
func New(data []byte) (*Bytes, error) {
	l := len(data)
	s := storageSize(l)

	key := make([]byte, 16)
	rng.Fill(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		secbytes.Zero(key)
		return nil, tupwerr.Wrap(tupwerr.InternalInvariantViolated, err, "failed to initialize protected-array masker")
	}

	perm := permutation(s)

	storage := make([]byte, s)
	rng.Fill(storage)

	startOffset := 0
	if s > l {
		startOffset = rng.IntRangeN(0, s-l)
	}

	for j := 0; j < l; j++ {
		physical := perm[startOffset+j]
		byteMask, _ := deriveMasks(block, int64(physical))
		storage[physical] = data[j] ^ byteMask
	}

	indexTable := make([]uint32, s)
	for i := 0; i < s; i++ {
		_, intMask := deriveMasks(block, int64(i))
		indexTable[i] = perm[i] ^ intMask
	}
	secbytes.ZeroUint32(perm)

	_, lengthMask := deriveMasks(block, lengthPos)
	_, startMask := deriveMasks(block, startPos)

	return &Bytes{
		valid:             true,
		block:             block,
		key:               key,
		storage:           storage,
		indexTable:        indexTable,
		lengthMasked:      uint32(l) ^ lengthMask,
		startOffsetMasked: uint32(startOffset) ^ startMask,
	}, nil
}

func storageSize(l int) int {
	return (l + storageBlockSize - 1) / storageBlockSize * storageBlockSize
}

// permutation returns a uniformly random permutation of 0..n-1 via
// Fisher-Yates, drawing each swap index from rng.
func permutation(n int) []uint32 {
	p := make([]uint32, n)
	for i := range p {
		p[i] = uint32(i)
	}
	for i := n - 1; i > 0; i-- {
		j := rng.IntRangeN(0, i)
		p[i], p[j] = p[j], p[i]
	}
	return p
}

// deriveMasks derives the byte mask and integer mask for position,
// zeroizing its scratch buffers before returning.
func deriveMasks(block cipher.Block, position int64) (byteMask byte, intMask uint32) {
	seed := make([]byte, 16)
	for i := range seed {
		seed[i] = 0x5A
	}
	binary.BigEndian.PutUint32(seed[6:10], uint32(int32(position)))

	maskBlock := make([]byte, 16)
	block.Encrypt(maskBlock, seed)

	byteIdx := (13*(int(position)&15) + 5) & 15

	absPos := position
	if absPos < 0 {
		absPos = -absPos
	}
	intIdx := (7*int(absPos%13) + 3) % 13

	byteMask = maskBlock[byteIdx]
	intMask = binary.LittleEndian.Uint32(maskBlock[intIdx : intIdx+4])

	secbytes.Zero(seed)
	secbytes.Zero(maskBlock)
	return byteMask, intMask
}

func (b *Bytes) checkValid() error {
	if !b.valid {
		return tupwerr.New(tupwerr.UseAfterDispose, "protected byte array has been disposed")
	}
	return nil
}

func (b *Bytes) lengthAndStart() (length int, start int) {
	_, lengthMask := deriveMasks(b.block, lengthPos)
	_, startMask := deriveMasks(b.block, startPos)
	return int(b.lengthMasked ^ lengthMask), int(b.startOffsetMasked ^ startMask)
}

func (b *Bytes) physicalOffset(virtualSlot int) int {
	_, slotMask := deriveMasks(b.block, int64(virtualSlot))
	physical := b.indexTable[virtualSlot] ^ slotMask
	return int(physical)
}

// Len returns the logical length of the stored secret.
func (b *Bytes) Len() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkValid(); err != nil {
		return 0, err
	}
	length, _ := b.lengthAndStart()
	return length, nil
}

// Get materializes a fresh owned copy of the stored secret.
func (b *Bytes) Get() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkValid(); err != nil {
		return nil, err
	}

	length, start := b.lengthAndStart()
	out := make([]byte, length)
	for j := 0; j < length; j++ {
		physical := b.physicalOffset(start + j)
		byteMask, _ := deriveMasks(b.block, int64(physical))
		out[j] = b.storage[physical] ^ byteMask
	}
	return out, nil
}

// GetAt returns the byte at logical index i.
func (b *Bytes) GetAt(i int) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkValid(); err != nil {
		return 0, err
	}

	length, start := b.lengthAndStart()
	if i < 0 || i >= length {
		return 0, tupwerr.New(tupwerr.IndexOutOfRange, "index %d out of range [0, %d)", i, length)
	}

	physical := b.physicalOffset(start + i)
	byteMask, _ := deriveMasks(b.block, int64(physical))
	return b.storage[physical] ^ byteMask, nil
}

// SetAt overwrites the byte at logical index i.
func (b *Bytes) SetAt(i int, v byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkValid(); err != nil {
		return err
	}

	length, start := b.lengthAndStart()
	if i < 0 || i >= length {
		return tupwerr.New(tupwerr.IndexOutOfRange, "index %d out of range [0, %d)", i, length)
	}

	physical := b.physicalOffset(start + i)
	byteMask, _ := deriveMasks(b.block, int64(physical))
	b.storage[physical] = v ^ byteMask
	return nil
}

// Equals materializes both b and other, compares them in constant time,
// and zeroizes both temporary copies before returning.
func (b *Bytes) Equals(other *Bytes) (bool, error) {
	mine, err := b.Get()
	if err != nil {
		return false, err
	}
	defer secbytes.Zero(mine)

	theirs, err := other.Get()
	if err != nil {
		return false, err
	}
	defer secbytes.Zero(theirs)

	return secbytes.ConstantTimeEqual(mine, theirs), nil
}

// Dispose zeroizes every internal buffer and the masking key, and marks
// the array unusable. Every subsequent operation fails with
// tupwerr.UseAfterDispose.
func (b *Bytes) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.valid {
		return
	}

	secbytes.Zero(b.storage)
	secbytes.ZeroUint32(b.indexTable)
	secbytes.Zero(b.key)
	b.lengthMasked = 0
	b.startOffsetMasked = 0
	b.block = nil
	b.valid = false
}
