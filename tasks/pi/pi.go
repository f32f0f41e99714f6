// Package pi provides a task that computes π to a fixed number of decimal places.
package pi

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"pkt.systems/computeengine/schema"
)

// Kind is the wire tag for the pi task.
const Kind schema.TaskKind = "pi"

// DefaultDigits is the precision requested when none is given.
const DefaultDigits = 50

// MaxDigits bounds a single request.
const MaxDigits = 100000

// guardDigits are carried past the requested precision so truncation in the
// series does not reach the rounding digit.
const guardDigits = 10

// cancelCheckEvery is how many series terms run between context checks.
const cancelCheckEvery = 64

// Decimal is an exact decimal rendering of a computed value.
type Decimal string

func (d Decimal) String() string { return string(d) }

// Task computes π rounded half-up to Digits decimal places.
type Task struct {
	Digits int `json:"digits"`
}

// New returns a task for the given number of decimal places.
func New(digits int) Task {
	return Task{Digits: digits}
}

// Kind implements core.Task.
func (Task) Kind() schema.TaskKind { return Kind }

func (t Task) String() string { return fmt.Sprintf("pi(%d digits)", t.Digits) }

// Execute implements core.Task.
func (t Task) Execute(ctx context.Context) (Decimal, error) {
	if t.Digits < 0 || t.Digits > MaxDigits {
		return "", fmt.Errorf("digits must be between 0 and %d, got %d", MaxDigits, t.Digits)
	}
	return Compute(ctx, t.Digits)
}

// Compute evaluates Machin's formula, π/4 = 4·arctan(1/5) − arctan(1/239),
// in fixed-point integer arithmetic.
func Compute(ctx context.Context, digits int) (Decimal, error) {
	scale := digits + guardDigits
	a, err := arctanInverse(ctx, 5, scale)
	if err != nil {
		return "", err
	}
	b, err := arctanInverse(ctx, 239, scale)
	if err != nil {
		return "", err
	}
	v := new(big.Int).Lsh(a, 2)
	v.Sub(v, b)
	v.Lsh(v, 2)

	// Round half-up from scale down to digits.
	guard := pow10(guardDigits)
	v.Add(v, new(big.Int).Quo(guard, big.NewInt(2)))
	v.Quo(v, guard)
	return format(v, digits), nil
}

// arctanInverse returns arctan(1/x) scaled by 10^scale using the Taylor series
// arctan(1/x) = 1/x − 1/(3x³) + 1/(5x⁵) − ...
func arctanInverse(ctx context.Context, x int64, scale int) (*big.Int, error) {
	unity := pow10(scale)
	x2 := big.NewInt(x * x)
	numer := new(big.Int).Quo(unity, big.NewInt(x))
	result := new(big.Int).Set(numer)
	term := new(big.Int)
	denom := new(big.Int)
	for i := int64(1); ; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		numer.Quo(numer, x2)
		denom.SetInt64(2*i + 1)
		term.Quo(numer, denom)
		if term.Sign() == 0 {
			return result, nil
		}
		if i%2 == 1 {
			result.Sub(result, term)
		} else {
			result.Add(result, term)
		}
	}
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func format(v *big.Int, digits int) Decimal {
	s := v.String()
	if digits == 0 {
		return Decimal(s)
	}
	if len(s) <= digits {
		s = strings.Repeat("0", digits-len(s)+1) + s
	}
	cut := len(s) - digits
	return Decimal(s[:cut] + "." + s[cut:])
}
