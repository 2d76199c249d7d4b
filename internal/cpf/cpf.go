// Package cpf validates Brazilian individual taxpayer numbers.
package cpf

import "strings"

// Normalize strips everything that is not a digit.
func Normalize(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether value, with or without punctuation, is a CPF with
// correct check digits. Sequences of a single repeated digit are rejected.
func Valid(value string) bool {
	digits := Normalize(value)
	if len(digits) != 11 {
		return false
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}
	if checkDigit(digits[:9], 10) != int(digits[9]-'0') {
		return false
	}
	return checkDigit(digits[:10], 11) == int(digits[10]-'0')
}

func checkDigit(digits string, weight int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// Format renders eleven digits as 000.000.000-00.
func Format(value string) string {
	digits := Normalize(value)
	if len(digits) != 11 {
		return value
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
}
