package transform

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/mtlprog/mstate/internal/fixedpoint"
	"github.com/mtlprog/mstate/internal/subgraph"
)

// fieldParser converts indexed numeric strings and keeps the first error.
// Once an error is recorded every later call returns a zero value.
type fieldParser struct {
	err error
}

func (p *fieldParser) fail(field string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
}

// exact reads a scaled integer string.
func (p *fieldParser) exact(field, s string, decimals uint8) fixedpoint.Decimal {
	if p.err != nil {
		return fixedpoint.Zero(decimals)
	}
	d, err := fixedpoint.FromExact(s, decimals)
	if err != nil {
		p.fail(field, err)
		return fixedpoint.Zero(decimals)
	}
	return d
}

// human reads a human decimal string such as "0.1037".
func (p *fieldParser) human(field, s string, decimals uint8) fixedpoint.Decimal {
	if p.err != nil {
		return fixedpoint.Zero(decimals)
	}
	d, err := fixedpoint.Parse(s, decimals)
	if err != nil {
		p.fail(field, err)
		return fixedpoint.Zero(decimals)
	}
	return d
}

func (p *fieldParser) metric(field string, m subgraph.Metric) fixedpoint.Decimal {
	return p.exact(field, m.Exact, m.Decimals)
}

func (p *fieldParser) bigInt(field, s string) *big.Int {
	return p.exact(field, s, 0).Exact()
}

// optBigInt returns nil for an absent or empty value.
func (p *fieldParser) optBigInt(field string, s *string) *big.Int {
	if s == nil || *s == "" {
		return nil
	}
	return p.bigInt(field, *s)
}

// float reads display-only values such as APYs. Empty strings are zero.
func (p *fieldParser) float(field, s string) float64 {
	if p.err != nil || strings.TrimSpace(s) == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		p.fail(field, &fixedpoint.ParseError{Input: s, Err: err})
		return 0
	}
	return f
}

// optFloat returns nil for an absent or empty value.
func (p *fieldParser) optFloat(field string, s *string) *float64 {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	f := p.float(field, *s)
	return &f
}
