// Package ordernumber builds human-readable order numbers ORD-YYYYMMDD-NNN.
//
// The three-digit suffix is random, so two orders on the same day can collide.
// Stores reject a duplicate number at write time and the order service retries
// with a fresh one.
package ordernumber

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	prefix     = "ORD"
	dateLayout = "20060102"
	suffixSpan = 1000
)

type Generator struct {
	intN func(n int) int
}

func NewGenerator() *Generator {
	return &Generator{intN: rand.IntN}
}

// NewGeneratorWithSource is used by tests to make suffixes predictable.
func NewGeneratorWithSource(intN func(n int) int) *Generator {
	return &Generator{intN: intN}
}

func (g *Generator) Next(at time.Time) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, at.Format(dateLayout), g.intN(suffixSpan))
}
