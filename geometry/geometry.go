// Package geometry describes the shape of a set-associative cache and maps
// memory addresses onto it.
package geometry

import (
	"errors"
	"fmt"
)

// ErrInvalidGeometry is wrapped by every error Validate returns.
var ErrInvalidGeometry = errors.New("invalid cache geometry")

// Default values used when a run does not specify the cache shape.
const (
	DefaultCacheSize     = 4096
	DefaultAssociativity = 2
	DefaultBlockSize     = 32
)

// WordSize is the number of bytes moved per bus cycle in a cache-to-cache
// transfer.
const WordSize = 4

// Geometry is the shape of one private cache. All sizes are in bytes.
type Geometry struct {
	CacheSize     int
	Associativity int
	BlockSize     int
}

// Default returns the 4 KiB, 2-way, 32-byte-block geometry.
func Default() Geometry {
	return Geometry{
		CacheSize:     DefaultCacheSize,
		Associativity: DefaultAssociativity,
		BlockSize:     DefaultBlockSize,
	}
}

// Validate checks that the cache can be split into a whole number of sets.
func (g Geometry) Validate() error {
	if g.CacheSize <= 0 || g.Associativity <= 0 || g.BlockSize <= 0 {
		return fmt.Errorf("%w: sizes must be positive, got %d/%d/%d",
			ErrInvalidGeometry, g.CacheSize, g.Associativity, g.BlockSize)
	}

	if g.BlockSize < WordSize {
		return fmt.Errorf("%w: block size %d is smaller than a word",
			ErrInvalidGeometry, g.BlockSize)
	}

	if g.CacheSize%g.BlockSize != 0 {
		return fmt.Errorf("%w: cache size must be divisible by block size",
			ErrInvalidGeometry)
	}

	if (g.CacheSize/g.BlockSize)%g.Associativity != 0 {
		return fmt.Errorf(
			"%w: total number of cache blocks must be divisible by associativity",
			ErrInvalidGeometry)
	}

	return nil
}

// NumBlocks returns the number of lines the cache holds.
func (g Geometry) NumBlocks() int {
	return g.CacheSize / g.BlockSize
}

// NumSets returns the number of sets.
func (g Geometry) NumSets() int {
	return g.NumBlocks() / g.Associativity
}

// WordsPerBlock returns the number of words in one block.
func (g Geometry) WordsPerBlock() int {
	return g.BlockSize / WordSize
}

// Decode splits an address into its set index and tag.
func (g Geometry) Decode(addr uint64) (setIndex, tag int) {
	block := addr / uint64(g.BlockSize)
	numSets := uint64(g.NumSets())

	return int(block % numSets), int(block / numSets)
}

// BlockAddress is the inverse of Decode: it returns the address of the first
// byte of the block identified by a set index and a tag.
func (g Geometry) BlockAddress(setIndex, tag int) uint64 {
	numSets := uint64(g.NumSets())
	blockSize := uint64(g.BlockSize)

	return uint64(tag)*numSets*blockSize + uint64(setIndex)*blockSize
}
