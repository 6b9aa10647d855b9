package enums

import (
	"fmt"
	"strings"
)

// Country is an ISO 3166-1 alpha-2 code of a country the shop delivers to.
type Country string

const (
	CountryDenmark     Country = "DK"
	CountrySweden      Country = "SE"
	CountryNorway      Country = "NO"
	CountryGermany     Country = "DE"
	CountryNetherlands Country = "NL"
)

var validCountries = []Country{
	CountryDenmark,
	CountrySweden,
	CountryNorway,
	CountryGermany,
	CountryNetherlands,
}

// String implements fmt.Stringer.
func (c Country) String() string {
	return string(c)
}

// IsValid reports whether the shop delivers to the country.
func (c Country) IsValid() bool {
	for _, candidate := range validCountries {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCountry converts raw input into a Country, ignoring case and surrounding spaces.
func ParseCountry(value string) (Country, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCountries {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid country %q", value)
}
