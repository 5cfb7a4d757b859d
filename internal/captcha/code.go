// Package captcha implements the visual challenge shown on the public status
// form: random code generation, a dotted bitmap rendering of the code,
// verification of the user's entry and a small state machine persisted in a
// pluggable store.
package captcha

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// Alphabet omits glyphs that are easy to confuse (I, O, 0, 1).
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the number of characters in a challenge code.
const CodeLength = 5

// Rand is the randomness the package draws from. *math/rand/v2.Rand
// satisfies it; tests pass a seeded one for reproducible codes and images.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// NewRand returns a goroutine-safe PCG source seeded with seed.
func NewRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// SystemRand returns a goroutine-safe source seeded from the runtime.
func SystemRand() Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// Generate draws CodeLength characters uniformly (with repetition) from
// Alphabet.
func Generate(r Rand) string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(Alphabet[r.IntN(len(Alphabet))])
	}
	return b.String()
}

// Normalize trims surrounding whitespace and uppercases the entry.
func Normalize(entered string) string {
	return strings.ToUpper(strings.TrimSpace(entered))
}

// Verify compares a user entry against code. Blank entries yield
// ErrMissingInput; otherwise the normalized entry must equal code exactly.
func Verify(entered, code string) (bool, error) {
	e := Normalize(entered)
	if e == "" {
		return false, ErrMissingInput
	}
	return e == code, nil
}
