package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// CodeGenerator produces numeric one-time codes.
type CodeGenerator struct {
	reader io.Reader
	digits int
}

// NewCodeGenerator returns a generator for codes of the given length backed by crypto/rand.
func NewCodeGenerator(digits int) *CodeGenerator {
	return &CodeGenerator{reader: rand.Reader, digits: digits}
}

// Generate returns a zero-padded numeric code.
func (g *CodeGenerator) Generate() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < g.digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(g.reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", g.digits, n.Int64()), nil
}
