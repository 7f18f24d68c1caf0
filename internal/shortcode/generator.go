// Package shortcode mints fixed-length short codes from a hash of an
// in-process sequence number, a millisecond timestamp and a server secret.
package shortcode

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"
)

const (
	// Alphabet is Base58: alphanumeric minus the visually ambiguous
	// 0, O, I and l.
	Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

	// Length is the fixed code length. 58^6 gives roughly 2^35 codes.
	Length = 6

	sequenceMod = 1_000_000
)

var base = big.NewInt(int64(len(Alphabet)))

// Generator produces short codes. Safe for concurrent use.
type Generator struct {
	secret   string
	sequence atomic.Int64
}

// NewGenerator creates a Generator keyed with the server secret.
func NewGenerator(secret string) *Generator {
	return &Generator{secret: secret}
}

// Generate mints one code for the given timestamp. The sequence number
// wraps mod 1,000,000; distinct timestamps keep bulk batches apart.
func (g *Generator) Generate(at time.Time) (string, error) {
	seq := g.sequence.Add(1) % sequenceMod

	input := fmt.Sprintf("%d-%d-%s", seq, at.UnixMilli(), g.secret)
	digest := sha256.Sum256([]byte(input))

	encoded := toBase58(digest[:])
	if len(encoded) < Length {
		return "", fmt.Errorf("short code encoding produced %d symbols, need %d", len(encoded), Length)
	}
	return encoded[:Length], nil
}

// GenerateBatch mints n codes using n distinct millisecond timestamps to
// reduce intra-batch collisions. Duplicates may still occur; callers
// de-duplicate against the store.
func (g *Generator) GenerateBatch(n int) ([]string, error) {
	now := time.Now()
	codes := make([]string, 0, n)
	for i := 0; i < n; i++ {
		code, err := g.Generate(now.Add(time.Duration(i) * time.Millisecond))
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

// Validate checks length and alphabet only, never existence.
func Validate(code string) bool {
	if len(code) != Length {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

func toBase58(buf []byte) string {
	num := new(big.Int).SetBytes(buf)
	if num.Sign() == 0 {
		return string(Alphabet[0])
	}

	var sb strings.Builder
	rem := new(big.Int)
	for num.Sign() > 0 {
		num.QuoRem(num, base, rem)
		sb.WriteByte(Alphabet[rem.Int64()])
	}

	// Digits come out least-significant first.
	out := []byte(sb.String())
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
