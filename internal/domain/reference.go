package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ReferencePrefix       = "PAY"
	referenceSuffixLength = 6
	referenceCharset      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ReferenceGenerator issues PAY-<unix-millis>-<suffix> references and never
// hands out the same value twice in one process. Timestamps never go
// backwards, so only the suffixes issued in the latest millisecond are kept.
type ReferenceGenerator struct {
	mu     sync.Mutex
	window int64
	issued map[string]struct{}
	now    func() time.Time
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{issued: make(map[string]struct{}), now: time.Now}
}

// advance moves the window to ms when ms is newer and returns the window.
func (g *ReferenceGenerator) advance(ms int64) int64 {
	if ms > g.window {
		g.window = ms
		clear(g.issued)
	}
	return g.window
}

// Next returns a fresh reference.
func (g *ReferenceGenerator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.advance(g.now().UnixMilli())
	for attempt := 0; attempt < 16; attempt++ {
		suffix, err := randomSuffix(referenceSuffixLength)
		if err != nil {
			return "", fmt.Errorf("generate reference: %w", err)
		}
		ref := fmt.Sprintf("%s-%d-%s", ReferencePrefix, ms, suffix)
		if _, seen := g.issued[ref]; seen {
			continue
		}
		g.issued[ref] = struct{}{}
		return ref, nil
	}
	return "", fmt.Errorf("generate reference: exhausted attempts")
}

// Reserve marks a caller-supplied reference as issued. It returns false if the
// generator already produced or reserved it. Only references stamped with
// the current window can clash with future output, so older ones are not kept.
func (g *ReferenceGenerator) Reserve(ref string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms, ok := referenceMillis(ref)
	if !ok || g.advance(g.now().UnixMilli()) != ms {
		return true
	}
	if _, seen := g.issued[ref]; seen {
		return false
	}
	g.issued[ref] = struct{}{}
	return true
}

// Size reports how many references the current window holds.
func (g *ReferenceGenerator) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.issued)
}

func referenceMillis(ref string) (int64, bool) {
	parts := strings.Split(ref, "-")
	if len(parts) != 3 || parts[0] != ReferencePrefix {
		return 0, false
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

func randomSuffix(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(referenceCharset)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(referenceCharset[idx.Int64()])
	}
	return b.String(), nil
}

var defaultReferences = NewReferenceGenerator()

// GenerateReference uses the process-wide generator.
func GenerateReference() (string, error) {
	return defaultReferences.Next()
}

// ValidReference checks the shape of a caller-supplied reference.
func ValidReference(ref string) bool {
	ref = strings.TrimSpace(ref)
	if len(ref) < 3 || len(ref) > 64 {
		return false
	}
	for _, r := range ref {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
