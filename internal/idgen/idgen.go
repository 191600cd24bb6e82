// Package idgen produces client-facing reservation identifiers.
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
)

// DefaultPrefix starts every reservation identifier.
const DefaultPrefix = "RSV"

var maxValue = big.NewInt(math.MaxInt64)

// Generator builds identifiers as a fixed prefix followed by a random
// non-negative 63-bit integer. It holds no counter and is safe for
// concurrent use; uniqueness is ultimately enforced by the store.
type Generator struct {
	prefix string
	source io.Reader
}

// Option customises a Generator.
type Option func(*Generator)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(g *Generator) { g.prefix = prefix }
}

// WithSource replaces crypto/rand.Reader, mainly for tests.
func WithSource(r io.Reader) Option {
	return func(g *Generator) { g.source = r }
}

// New returns a Generator reading from crypto/rand.
func New(opts ...Option) *Generator {
	g := &Generator{prefix: DefaultPrefix, source: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns a fresh identifier.
func (g *Generator) Next() (string, error) {
	n, err := rand.Int(g.source, maxValue)
	if err != nil {
		return "", fmt.Errorf("read random source: %w", err)
	}
	return g.prefix + strconv.FormatInt(n.Int64(), 10), nil
}
