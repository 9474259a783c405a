package datatable

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The report generator writes value cells in one of three encodings:
//
//	12.5
//	5+/-1
//	(5+/-1)e-2
//
// Any of them may carry a leading "<" marking an upper limit.
var (
	pairRe    = regexp.MustCompile(`^([^(][^+]*)\+/-(.+)$`)
	expPairRe = regexp.MustCompile(`^\((.+)\+/-(.+)\)[eE]([+-]?\d+)$`)
)

// parsedValue is the normalized form of one value cell.
type parsedValue struct {
	value    float64
	variance float64 // uncertainty squared
	limit    bool
}

func parseValue(text string) (parsedValue, bool) {
	s := strings.TrimSpace(text)
	var out parsedValue
	if strings.HasPrefix(s, "<") {
		out.limit = true
		s = strings.TrimSpace(s[1:])
	}
	if m := expPairRe.FindStringSubmatch(s); m != nil {
		mag, err1 := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		unc, err2 := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
		exp, err3 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || err3 != nil {
			return out, false
		}
		scale := math.Pow(10, float64(exp))
		out.value = mag * scale
		out.variance = unc * scale * unc * scale
		return out, true
	}
	if m := pairRe.FindStringSubmatch(s); m != nil {
		mag, err1 := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		unc, err2 := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
		if err1 != nil || err2 != nil {
			return out, false
		}
		out.value = mag
		out.variance = unc * unc
		return out, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return out, false
	}
	out.value = v
	return out, true
}
