package scoring

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "$1,200,000", "USD 4.5 million", "€ 300k", "1,000 dollars".
	currencyRe = regexp.MustCompile(`(?i)(?:(?:US\$|\$|USD|€|EUR|£|GBP)\s*` + amount + `|` + amount + `\s*(?:USD|EUR|GBP|dollars|euros|pounds)\b)`)
	plainRe    = regexp.MustCompile(`(?i)` + amount)
	// Enumerations at the start of a line ("3. Cost", "Section 2:") are not amounts.
	lineEnumRe = regexp.MustCompile(`(?i)^\s*(?:(?:section|volume|part|tab)\s+)?\d+(?:\.\d+)*[.):]?\s+`)
)

const amount = `(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?(?:\s*(k|thousand|mm|m|million|bn|b|billion)\b)?`

// ExtractCost returns the first currency-marked amount in text, or failing
// that the first plain number. Thousands separators and k/million/billion
// suffixes are honored.
func ExtractCost(text string) (float64, bool) {
	if m := currencyRe.FindStringSubmatch(text); m != nil {
		// Either the prefix or the suffix form matched; pick its groups.
		if m[1] != "" {
			return parseAmount(m[1], m[2], m[3])
		}
		return parseAmount(m[4], m[5], m[6])
	}
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\f' || r == '\r' }) {
		line = lineEnumRe.ReplaceAllString(line, "")
		if m := plainRe.FindStringSubmatch(line); m != nil {
			return parseAmount(m[1], m[2], m[3])
		}
	}
	return 0, false
}

func parseAmount(whole, frac, suffix string) (float64, bool) {
	s := strings.ReplaceAll(whole, ",", "")
	if frac != "" {
		s += "." + frac
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	switch strings.ToLower(suffix) {
	case "k", "thousand":
		v *= 1e3
	case "m", "mm", "million":
		v *= 1e6
	case "b", "bn", "billion":
		v *= 1e9
	}
	return v, true
}

// CostBaseline is the batch-wide minimum cost. It is built once after every
// proposal is extracted and is read-only afterwards.
type CostBaseline struct {
	Min   float64
	Known int // proposals with an extracted cost
}

// NewCostBaseline computes the baseline from every extracted cost.
// Nil entries (no cost found) are skipped.
func NewCostBaseline(costs []*float64) CostBaseline {
	b := CostBaseline{Min: math.Inf(1)}
	for _, c := range costs {
		if c == nil || *c < 0 {
			continue
		}
		b.Known++
		b.Min = math.Min(b.Min, *c)
	}
	if b.Known == 0 {
		b.Min = 0
	}
	return b
}

// Score applies linear inverse scaling: the cheapest proposal gets 100 and
// the rest 100*min/cost. Zero cost scores 100; no cost scores 0.
func (b CostBaseline) Score(cost *float64) float64 {
	if cost == nil || *cost < 0 || b.Known == 0 {
		return 0
	}
	if *cost == 0 || *cost <= b.Min {
		return 100
	}
	return 100 * b.Min / *cost
}
