package models

import (
	"regexp"
	"strings"
)

var postcodeLine = regexp.MustCompile(`(\d{5})(?:\s+(.+))?`)

// PostalAddress is a German postal address split into its parts.
type PostalAddress struct {
	Street   string `json:"street"`
	PostCode string `json:"postCode"`
	City     string `json:"city"`
	Country  string `json:"country"` // ISO 3166-1 alpha-2
}

// ParseAddress splits a multi-line address. The first line is the street; the
// first line containing a five digit postcode provides postcode and city.
// Comma separated single-line addresses are treated like multi-line ones.
func ParseAddress(s string) PostalAddress {
	addr := PostalAddress{Country: "DE"}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.Contains(s, "\n") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", "\n")
	}

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return addr
	}

	addr.Street = lines[0]
	for _, line := range lines {
		if m := postcodeLine.FindStringSubmatch(line); m != nil {
			addr.PostCode = m[1]
			addr.City = strings.TrimSpace(m[2])
			break
		}
	}
	return addr
}

// SplitStreet separates house number and suffix from a street line,
// e.g. "Hauptstraße 12a" -> "Hauptstraße", "12", "a".
func SplitStreet(line string) (street, number, suffix string) {
	m := streetNumber.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return strings.TrimSpace(line), "", ""
	}
	return strings.TrimSpace(m[1]), m[2], m[3]
}

var streetNumber = regexp.MustCompile(`^(.*?)\s+(\d+)\s*([a-zA-Z]?)$`)
