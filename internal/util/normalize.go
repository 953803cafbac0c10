package util

import (
	"net/mail"
	"strings"
)

// ParseSender extracts the display name and address from a From header
// such as `"Jane Doe" <jane@example.com>`. The address keeps its case.
// Returns empty strings if no address can be parsed.
func ParseSender(fromHeader string) (name, email string) {
	fromHeader = strings.TrimSpace(fromHeader)
	if fromHeader == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(fromHeader)
	if err != nil || addr == nil {
		// Some headers carry a list; take the first entry that parses.
		for _, p := range strings.Split(fromHeader, ",") {
			a, e := mail.ParseAddress(strings.TrimSpace(p))
			if e == nil && a != nil {
				addr = a
				break
			}
		}
		if addr == nil {
			return "", ""
		}
	}
	return strings.TrimSpace(addr.Name), strings.TrimSpace(addr.Address)
}

// FormatSignature renders an identity the way trailers expect it:
// "Name <email>". The name is omitted when empty.
func FormatSignature(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return "<" + email + ">"
	}
	return name + " <" + email + ">"
}
