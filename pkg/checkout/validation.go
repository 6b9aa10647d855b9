package checkout

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
	expiryPattern = regexp.MustCompile(`^(\d{1,2})\s*/\s*(\d{2})$`)
	cardSeparator = strings.NewReplacer(" ", "", "-", "", "\t", "")
)

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// IsValidEmail reports whether value has the local@domain.tld shape.
func IsValidEmail(value string) bool {
	return emailPattern.MatchString(strings.TrimSpace(value))
}

// NormalizeCardNumber strips the separators shoppers type between digit groups.
func NormalizeCardNumber(value string) string {
	return cardSeparator.Replace(strings.TrimSpace(value))
}

// IsValidCardNumber accepts 13 to 19 digits once separators are removed.
func IsValidCardNumber(value string) bool {
	number := NormalizeCardNumber(value)
	if len(number) < minCardDigits || len(number) > maxCardDigits {
		return false
	}
	return digitsPattern.MatchString(number)
}

// CardLast4 returns the last four digits of a card number, or "" when it is too short.
func CardLast4(value string) string {
	number := NormalizeCardNumber(value)
	if len(number) < 4 {
		return ""
	}
	return number[len(number)-4:]
}

// MaskCardNumber renders a card as "**** **** **** 1234".
func MaskCardNumber(value string) string {
	last4 := CardLast4(value)
	if last4 == "" {
		return ""
	}
	return "**** **** **** " + last4
}

// ParseExpiry reads an MM/YY expiry into its month and four-digit year.
func ParseExpiry(value string) (month int, year int, ok bool) {
	m := expiryPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(m[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	yy, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return month, 2000 + yy, true
}

// IsValidExpiry accepts MM/YY dates from the current month onwards.
func IsValidExpiry(value string, now time.Time) bool {
	month, year, ok := ParseExpiry(value)
	if !ok {
		return false
	}
	currentYear, currentMonth := now.Year(), int(now.Month())
	if year < currentYear {
		return false
	}
	return year > currentYear || month >= currentMonth
}

// IsValidCVV accepts three or four digits.
func IsValidCVV(value string) bool {
	cvv := strings.TrimSpace(value)
	if len(cvv) < 3 || len(cvv) > 4 {
		return false
	}
	return digitsPattern.MatchString(cvv)
}
