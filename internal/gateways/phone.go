package gateway

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone canonicalizes a Kenyan mobile number to 254XXXXXXXXX.
// Accepted inputs: "07XXXXXXXX" and "01XXXXXXXX" local forms, bare
// "7XXXXXXXX" / "1XXXXXXXX", "+254..." and "254..." international forms,
// with spaces and dashes tolerated anywhere.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch r {
		case ' ', '-', '+':
			continue
		default:
			b.WriteRune(r)
		}
	}
	phone := b.String()

	if phone == "" {
		return "", ErrInvalidPhone
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}

	switch {
	case strings.HasPrefix(phone, "254"):
		// already canonical
	case strings.HasPrefix(phone, "0"):
		phone = "254" + phone[1:]
	case strings.HasPrefix(phone, "7") || strings.HasPrefix(phone, "1"):
		phone = "254" + phone
	default:
		return "", ErrInvalidPhone
	}

	if len(phone) != 12 {
		return "", ErrInvalidPhone
	}

	return phone, nil
}
