package nutrition

import "strings"

// Fixed per-unit gram factors for weight units.
var weightGrams = map[string]float64{
	"g": 1, "gram": 1, "grams": 1,
	"kg": 1000, "kilogram": 1000, "kilograms": 1000,
	"oz": 28.35, "ounce": 28.35, "ounces": 28.35,
	"lb": 453.59, "lbs": 453.59, "pound": 453.59, "pounds": 453.59,
}

// Fixed per-unit milliliter factors for volume units.
var volumeMilliliters = map[string]float64{
	"ml": 1, "milliliter": 1, "milliliters": 1,
	"l": 1000, "liter": 1000, "liters": 1000, "litre": 1000, "litres": 1000,
	"cup": 236.59, "cups": 236.59,
	"tbsp": 14.79, "tablespoon": 14.79, "tablespoons": 14.79,
	"tsp": 4.93, "teaspoon": 4.93, "teaspoons": 4.93,
	"pint": 473.18, "pints": 473.18,
	"quart": 946.35, "quarts": 946.35,
	"fl oz": 29.57,
}

// Density in g/ml, matched by substring against the cleaned ingredient
// name. Water density (1.0) is the default for unmatched ingredients.
var densities = []struct {
	match   string
	density float64
}{
	{"flour", 0.55},
	{"powdered sugar", 0.56},
	{"brown sugar", 0.93},
	{"sugar", 0.85},
	{"butter", 0.91},
	{"oil", 0.92},
	{"honey", 1.42},
	{"syrup", 1.37},
	{"milk", 1.03},
	{"cream", 1.01},
	{"yogurt", 1.04},
	{"cocoa", 0.52},
	{"oats", 0.41},
	{"rice", 0.85},
	{"salt", 1.22},
	{"water", 1.0},
}

// Default gram weight per item for count-based lines ("2 eggs"), matched
// by substring. Unmatched ingredients assume 100 g per item.
var unitWeights = []struct {
	match string
	grams float64
}{
	{"egg", 50},
	{"garlic", 5},
	{"onion", 110},
	{"shallot", 40},
	{"potato", 170},
	{"carrot", 60},
	{"celery", 40},
	{"tomato", 120},
	{"apple", 180},
	{"banana", 115},
	{"lemon", 85},
	{"lime", 65},
	{"orange", 130},
	{"avocado", 200},
	{"bell pepper", 120},
	{"chicken breast", 170},
	{"chicken thigh", 130},
	{"bay leaf", 0.2},
}

const defaultUnitWeightGrams = 100

func isUnit(token string) bool {
	if _, ok := weightGrams[token]; ok {
		return true
	}
	_, ok := volumeMilliliters[token]
	return ok
}

// UnitToGrams converts a parsed (unit, quantity) pair to grams for the
// named ingredient. Weight units convert directly; volume units go
// through milliliters and the ingredient density table; unitless lines
// use the per-ingredient default item weight.
func UnitToGrams(unit string, qty float64, name string) float64 {
	u := strings.ToLower(strings.TrimSpace(unit))

	if factor, ok := weightGrams[u]; ok {
		return qty * factor
	}
	if ml, ok := volumeMilliliters[u]; ok {
		return qty * ml * densityFor(name)
	}
	return qty * itemWeightFor(name)
}

func densityFor(name string) float64 {
	n := strings.ToLower(name)
	for _, d := range densities {
		if strings.Contains(n, d.match) {
			return d.density
		}
	}
	return 1.0
}

func itemWeightFor(name string) float64 {
	n := strings.ToLower(name)
	for _, w := range unitWeights {
		if strings.Contains(n, w.match) {
			return w.grams
		}
	}
	return defaultUnitWeightGrams
}
