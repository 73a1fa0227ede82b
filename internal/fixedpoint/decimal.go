// Package fixedpoint implements an exact decimal value backed by a scaled integer.
//
// A Decimal stores exact = value × 10^decimals. All arithmetic is integer arithmetic on exact,
// and every division truncates toward zero; nothing in this package rounds to nearest.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// DefaultDecimals matches the 18-decimal token convention.
const DefaultDecimals uint8 = 18

// RatioDecimals is the precision of basset ratios.
const RatioDecimals uint8 = 8

var (
	// ErrScaleMismatch is returned when an operation requires operands at the same scale.
	ErrScaleMismatch = errors.New("decimal scale mismatch")
	// ErrDivisionByZero is returned by the division helpers instead of panicking.
	ErrDivisionByZero = errors.New("division by zero")
)

var (
	scale      = pow10(DefaultDecimals)
	ratioScale = pow10(RatioDecimals)
)

// ParseError reports a string that is not a valid decimal numeral.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing decimal %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decimal is an immutable fixed-point number. The zero value is 0 at 0 decimals.
type Decimal struct {
	exact    *big.Int
	decimals uint8
}

// Zero returns 0 at the given scale.
func Zero(decimals uint8) Decimal {
	return Decimal{exact: new(big.Int), decimals: decimals}
}

// One returns 1 at 18 decimals, i.e. an exact integer of 1e18.
func One() Decimal {
	return Decimal{exact: new(big.Int).Set(scale), decimals: DefaultDecimals}
}

// Scale returns 1e18 as a fresh integer, the fixed-point representation of one.
func Scale() *big.Int { return new(big.Int).Set(scale) }

// RatioScale returns 1e8 as a fresh integer.
func RatioScale() *big.Int { return new(big.Int).Set(ratioScale) }

// maxNumeralLen bounds Parse input.
const maxNumeralLen = 256

// numeral is a plain decimal numeral: optional sign, digits, optional fraction. No exponent.
var numeral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

var errNotNumeral = errors.New("not a decimal numeral")

// Parse converts a human decimal string such as "12.32" into a Decimal with the given scale.
// Fractional digits beyond decimals are truncated, never rounded. Exponent notation is rejected.
func Parse(s string, decimals uint8) (Decimal, error) {
	if len(s) > maxNumeralLen {
		return Decimal{}, &ParseError{Input: s, Err: fmt.Errorf("longer than %d characters", maxNumeralLen)}
	}
	if !numeral.MatchString(s) {
		return Decimal{}, &ParseError{Input: s, Err: errNotNumeral}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, &ParseError{Input: s, Err: err}
	}
	exact := d.Truncate(int32(decimals)).Shift(int32(decimals)).BigInt()
	return Decimal{exact: exact, decimals: decimals}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string, decimals uint8) Decimal {
	d, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInteger wraps an already scaled integer. The integer is copied.
func FromInteger(exact *big.Int, decimals uint8) Decimal {
	if exact == nil {
		return Zero(decimals)
	}
	return Decimal{exact: new(big.Int).Set(exact), decimals: decimals}
}

// FromExact wraps an already scaled integer given in base-10 string form, as indexers emit it.
func FromExact(s string, decimals uint8) (Decimal, error) {
	exact, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Decimal{}, &ParseError{Input: s, Err: errors.New("not a base-10 integer")}
	}
	return Decimal{exact: exact, decimals: decimals}, nil
}

// FromFloat converts a binary float through its shortest fixed string form, truncated to the given scale.
// Precision may be lost converting the float; never afterwards.
func FromFloat(f float64, decimals uint8) (Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Decimal{}, &ParseError{Input: strconv.FormatFloat(f, 'g', -1, 64), Err: errors.New("not a finite number")}
	}
	return Parse(strconv.FormatFloat(f, 'f', -1, 64), decimals)
}

// Decimals returns the scale.
func (d Decimal) Decimals() uint8 { return d.decimals }

// Exact returns a copy of the scaled integer.
func (d Decimal) Exact() *big.Int { return new(big.Int).Set(d.int()) }

// IsZero reports whether the value is zero.
func (d Decimal) IsZero() bool { return d.int().Sign() == 0 }

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int { return d.int().Sign() }

func (d Decimal) int() *big.Int {
	if d.exact == nil {
		return new(big.Int)
	}
	return d.exact
}

func (d Decimal) value() decimal.Decimal {
	return decimal.NewFromBigInt(d.int(), -int32(d.decimals))
}

// String returns the plain decimal representation without trailing zeros and without separators.
func (d Decimal) String() string {
	return d.value().String()
}

// Float64 returns the nearest float. Display only.
func (d Decimal) Float64() float64 {
	return d.value().InexactFloat64()
}

// Format truncates to places fractional digits and optionally groups thousands.
// A non-empty suffix is appended after a space.
func (d Decimal) Format(places int, withSeparators bool, suffix string) string {
	if places < 0 {
		places = 0
	}
	s := d.value().Truncate(int32(places)).StringFixed(int32(places))
	if withSeparators {
		s = groupThousands(s)
	}
	if suffix != "" {
		s += " " + suffix
	}
	return s
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")
	n, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return s
	}
	out := humanize.BigComma(n)
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Rescale converts to another scale. Scaling up is exact, scaling down truncates.
// At an equal scale the receiver is returned as is.
func (d Decimal) Rescale(decimals uint8) Decimal {
	if d.decimals == decimals {
		return d
	}
	var scaled *big.Int
	if decimals > d.decimals {
		scaled = new(big.Int).Mul(d.int(), pow10(decimals-d.decimals))
	} else {
		scaled = new(big.Int).Quo(d.int(), pow10(d.decimals-decimals))
	}
	return Decimal{exact: scaled, decimals: decimals}
}

// Add returns d + other. Both operands must share a scale; rescale explicitly first.
func (d Decimal) Add(other Decimal) (Decimal, error) {
	if err := sameScale(d, other); err != nil {
		return Decimal{}, err
	}
	return d.with(new(big.Int).Add(d.int(), other.int())), nil
}

// Sub returns d - other. Both operands must share a scale.
func (d Decimal) Sub(other Decimal) (Decimal, error) {
	if err := sameScale(d, other); err != nil {
		return Decimal{}, err
	}
	return d.with(new(big.Int).Sub(d.int(), other.int())), nil
}

// Sum adds values that all share one scale. An empty call returns 0 at 18 decimals.
func Sum(values ...Decimal) (Decimal, error) {
	if len(values) == 0 {
		return Zero(DefaultDecimals), nil
	}
	total := values[0]
	for _, v := range values[1:] {
		var err error
		if total, err = total.Add(v); err != nil {
			return Decimal{}, err
		}
	}
	return total, nil
}

// MulTruncate returns exact × other / 1e18 at the receiver's scale.
// Used for precise-unit × precise-unit multiplication.
func (d Decimal) MulTruncate(other *big.Int) Decimal {
	return d.with(mulDiv(d.int(), other, scale))
}

// MulRatioTruncate returns exact × ratio / 1e8 at the receiver's scale.
func (d Decimal) MulRatioTruncate(ratio *big.Int) Decimal {
	return d.with(mulDiv(d.int(), ratio, ratioScale))
}

// DivRatioPrecisely returns exact × 1e8 / ratio, the inverse of MulRatioTruncate.
func (d Decimal) DivRatioPrecisely(ratio *big.Int) (Decimal, error) {
	if ratio == nil || ratio.Sign() == 0 {
		return Decimal{}, ErrDivisionByZero
	}
	return d.with(mulDiv(d.int(), ratioScale, ratio)), nil
}

// DivPrecisely returns exact × 1e18 / other.exact as an 18-decimal ratio, e.g. 8e18/10e18 = 0.8.
// Both operands should share a scale for the result to be meaningful.
func (d Decimal) DivPrecisely(other Decimal) (Decimal, error) {
	if other.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	return Decimal{exact: mulDiv(d.int(), scale, other.int()), decimals: DefaultDecimals}, nil
}

// Cmp compares values across scales without losing precision.
func (d Decimal) Cmp(other Decimal) int {
	target := max(d.decimals, other.decimals)
	return d.Rescale(target).int().Cmp(other.Rescale(target).int())
}

// Equal reports value equality across scales.
func (d Decimal) Equal(other Decimal) bool {
	return d.Cmp(other) == 0
}

func (d Decimal) with(exact *big.Int) Decimal {
	return Decimal{exact: exact, decimals: d.decimals}
}

func sameScale(a, b Decimal) error {
	if a.decimals != b.decimals {
		return fmt.Errorf("%w: %d and %d decimals", ErrScaleMismatch, a.decimals, b.decimals)
	}
	return nil
}

func mulDiv(a, b, c *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	n := new(big.Int).Mul(a, b)
	return n.Quo(n, c)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
