package tables

import (
	"strconv"
	"strings"
)

var numericNoise = strings.NewReplacer(",", "", "$", "", "€", "", "£", "")

// CleanCell turns raw cell text into a typed value.
//
// Blank cells become null. Otherwise the text is trimmed and newlines are
// replaced by spaces. A numeric parse is attempted on a copy with thousands
// separators and currency symbols removed, where "(123)" means -123; a "."
// selects float parsing, anything else integer parsing. When parsing fails
// the trimmed text is returned with its punctuation intact.
func CleanCell(raw string) Value {
	if strings.TrimSpace(raw) == "" {
		return Null()
	}

	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "\n", " ")

	num := numericNoise.Replace(cleaned)
	if strings.HasPrefix(num, "(") && strings.HasSuffix(num, ")") {
		num = "-" + num[1:len(num)-1]
	}

	if strings.Contains(num, ".") {
		if f, ok := parseFloat(num); ok {
			return Float(f)
		}
		return String(cleaned)
	}
	if digits, ok := parseInt(num); ok {
		return Value{kind: KindInt, text: digits}
	}
	return String(cleaned)
}

// parseInt accepts an optionally signed run of ASCII digits surrounded by
// whitespace, with single underscores allowed between digits. It returns the
// normalized decimal form without leading zeros or a plus sign.
func parseInt(s string) (string, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	digits, ok := dropDigitSeparators(s)
	if !ok || digits == "" {
		return "", false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return "", false
		}
	}

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0", true
	}
	if neg {
		return "-" + digits, true
	}
	return digits, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xXpP") {
		return 0, false
	}
	clean, ok := dropDigitSeparators(s)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// dropDigitSeparators removes underscores that sit between two digits and
// rejects any other underscore.
func dropDigitSeparators(s string) (string, bool) {
	if !strings.Contains(s, "_") {
		return s, true
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			b.WriteByte(c)
			continue
		}
		if i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1]) {
			return "", false
		}
	}
	return b.String(), true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
