package formats

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	dateTimeRe = regexp.MustCompile(`^([0-9]{4})-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])T([01][0-9]|2[0-3]):([0-5][0-9]):([0-5][0-9]|60)(\.[0-9]+)?(Z|[+-](?:[01][0-9]|2[0-3]):[0-5][0-9])$`)

	// RFC 5322 dot-atom or quoted-string local part.
	localPartRe = regexp.MustCompile("^(?i:[a-z0-9!#$%&'*+/=?^_`{|}~-]+(?:\\.[a-z0-9!#$%&'*+/=?^_`{|}~-]+)*|\"(?:[\\x01-\\x08\\x0b\\x0c\\x0e-\\x1f\\x21\\x23-\\x5b\\x5d-\\x7f]|\\\\[\\x01-\\x09\\x0b\\x0c\\x0e-\\x7f])*\")$")

	labelRe = regexp.MustCompile(`^([0-9a-z]|[0-9a-z][0-9a-z-]{0,61}[0-9a-z])$`)

	ipv4Re     = regexp.MustCompile(`^((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	ipv4TailRe = regexp.MustCompile(`((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	ipv6FullRe = regexp.MustCompile(`^([0-9a-fA-F]{1,4}:){7}[0-9a-fA-F]{1,4}$`)
	ipv6V4Re   = regexp.MustCompile(`^([0-9a-fA-F]{1,4}:){6}((25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

	uriRe    = regexp.MustCompile(`^(([^:/?#]+):)?(//([^/?#]*))?([^?#]*)(\?([^#]*))?(#(.*))?$`)
	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*$`)

	uuidRe = regexp.MustCompile(`^[a-f0-9]{8}(-[a-f0-9]{4}){3}-[a-f0-9]{12}$`)
	hexRe  = regexp.MustCompile(`^[a-f0-9]+$`)
)

const (
	maxHostnameLength = 255
	maxLabelLength    = 63
)

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// IsLeapYear reports whether year has a February 29th in the Gregorian calendar.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month (1-12) of year.
func DaysIn(month, year int) int {
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	return daysInMonth[month-1]
}

// DateTime validates an RFC 3339 full date-time. A seconds field of 60 is
// accepted so leap-second timestamps pass.
func DateTime(s string) error {
	m := dateTimeRe.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("invalid date-time: %q does not match YYYY-MM-DDThh:mm:ss[.frac](Z|±hh:mm)", s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if limit := DaysIn(month, year); day > limit {
		return fmt.Errorf("invalid date-time: day %02d out of range for %04d-%02d (max %d)", day, year, month, limit)
	}
	return nil
}

// Email validates an address of the form local-part@domain, where the domain
// must itself be a valid hostname.
func Email(s string) error {
	if n := strings.Count(s, "@"); n != 1 {
		return fmt.Errorf("invalid email: expected exactly one @, found %d", n)
	}
	local, domain, _ := strings.Cut(s, "@")
	if !localPartRe.MatchString(local) {
		return fmt.Errorf("invalid email: local part %q is not valid", local)
	}
	if err := Hostname(domain); err != nil {
		return fmt.Errorf("invalid email: domain: %w", err)
	}
	return nil
}

// Hostname validates an RFC 1034 host name, case-insensitively.
func Hostname(s string) error {
	if len(s) > maxHostnameLength {
		return fmt.Errorf("invalid hostname: length %d exceeds %d", len(s), maxHostnameLength)
	}
	for _, label := range strings.Split(strings.ToLower(s), ".") {
		if len(label) > maxLabelLength {
			return fmt.Errorf("invalid hostname: label %q exceeds %d characters", label, maxLabelLength)
		}
		if !labelRe.MatchString(label) {
			return fmt.Errorf("invalid hostname: invalid label %q", label)
		}
	}
	return nil
}

// IPv4 validates a dotted-quad address with each octet in 0-255.
func IPv4(s string) error {
	if !ipv4Re.MatchString(s) {
		return fmt.Errorf("invalid ipv4: %q", s)
	}
	return nil
}

// IPv6 validates an IPv6 address in full, embedded-IPv4 or "::"-compressed form.
func IPv6(s string) error {
	expanded, err := ExpandIPv6(s)
	if err != nil {
		return err
	}
	if ipv6FullRe.MatchString(expanded) || ipv6V4Re.MatchString(expanded) {
		return nil
	}
	return fmt.Errorf("invalid ipv6: %q", s)
}

// ExpandIPv6 replaces a single "::" run with the zero groups it stands for,
// producing 8 groups, or 6 groups followed by an embedded IPv4 tail. The run
// stands for at least one group, so "1:2:3:4:5:6:7::" and "::2:3:4:5:6:7:8"
// are accepted. Strings without "::" are returned unchanged.
func ExpandIPv6(s string) (string, error) {
	head, tail, found := strings.Cut(s, "::")
	if !found {
		return s, nil
	}
	if strings.Contains(tail, "::") {
		return "", fmt.Errorf("invalid ipv6: %q contains more than one \"::\"", s)
	}

	total := 8
	if ipv4TailRe.MatchString(s) {
		total = 7
	}
	var groups []string
	if head != "" {
		groups = strings.Split(head, ":")
	}
	var rest []string
	if tail != "" {
		rest = strings.Split(tail, ":")
	}
	missing := total - len(groups) - len(rest)
	if missing < 1 {
		return "", fmt.Errorf("invalid ipv6: %q has too many groups for \"::\"", s)
	}
	for i := 0; i < missing; i++ {
		groups = append(groups, "0")
	}
	return strings.Join(append(groups, rest...), ":"), nil
}

// URI performs a best-effort RFC 3986 check: the value must decompose into
// scheme, authority, path, query and fragment, contain no whitespace or
// control characters, and carry a well-formed scheme when one is present.
func URI(s string) error {
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == 0x7f }) {
		return fmt.Errorf("invalid uri: %q contains whitespace or control characters", s)
	}
	m := uriRe.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("invalid uri: %q", s)
	}
	if m[1] != "" && !schemeRe.MatchString(m[2]) {
		return fmt.Errorf("invalid uri: malformed scheme %q", m[2])
	}
	return nil
}

// UUID validates the canonical lowercase 8-4-4-4-12 form.
func UUID(s string) error {
	if !uuidRe.MatchString(s) {
		return fmt.Errorf("invalid uuid: %q", s)
	}
	return nil
}

// Hex validates a non-empty string of lowercase hex digits.
func Hex(s string) error {
	if !hexRe.MatchString(s) {
		return fmt.Errorf("invalid hex: %q", s)
	}
	return nil
}
