package nutrition

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedIngredient is the (quantity, unit, name) split of one line.
type ParsedIngredient struct {
	Quantity float64
	Unit     string
	Name     string
}

// Leading quantity: mixed fraction ("1 1/2"), bare fraction ("3/4"),
// decimal ("1.5", ".5"), or integer.
var quantityPattern = regexp.MustCompile(`^(\d+\s+\d+/\d+|\d+/\d+|\d+\.\d+|\.\d+|\d+)\s*(.*)$`)

// Fallback: quantity anywhere in the line, e.g. "about 2 cups flour".
var looseQuantityPattern = regexp.MustCompile(`(\d+\s+\d+/\d+|\d+/\d+|\d+\.\d+|\d+)\s+(.+)$`)

// ParseIngredient splits a free-text ingredient line into quantity, unit
// token and descriptive name. When nothing parses, the whole line becomes
// the name with quantity 1 and no unit.
func ParseIngredient(line string) ParsedIngredient {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ParsedIngredient{Quantity: 1}
	}

	if m := quantityPattern.FindStringSubmatch(trimmed); m != nil {
		if qty, ok := parseQuantity(m[1]); ok {
			unit, name := splitUnit(m[2])
			if name == "" {
				name = trimmed
				unit = ""
			}
			return ParsedIngredient{Quantity: qty, Unit: unit, Name: name}
		}
	}

	if m := looseQuantityPattern.FindStringSubmatch(trimmed); m != nil {
		if qty, ok := parseQuantity(m[1]); ok {
			unit, name := splitUnit(m[2])
			if name != "" {
				return ParsedIngredient{Quantity: qty, Unit: unit, Name: name}
			}
		}
	}

	return ParsedIngredient{Quantity: 1, Name: trimmed}
}

func parseQuantity(token string) (float64, bool) {
	token = strings.TrimSpace(token)

	if fields := strings.Fields(token); len(fields) == 2 {
		whole, ok1 := parseQuantity(fields[0])
		frac, ok2 := parseQuantity(fields[1])
		if ok1 && ok2 {
			return whole + frac, true
		}
		return 0, false
	}

	if num, den, found := strings.Cut(token, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}

	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// splitUnit peels a recognized unit token off the front of the remainder.
// "of" immediately after the unit is dropped ("2 cups of flour").
func splitUnit(rest string) (unit, name string) {
	rest = strings.TrimSpace(rest)
	token, remainder, _ := strings.Cut(rest, " ")
	candidate := strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(token, "."), ","))
	if !isUnit(candidate) {
		return "", rest
	}
	remainder = strings.TrimSpace(remainder)
	if after, found := strings.CutPrefix(remainder, "of "); found {
		remainder = strings.TrimSpace(after)
	}
	return candidate, remainder
}
