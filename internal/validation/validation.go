// Package validation provides input validation for sealreg.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

// Domain names: dot-separated lowercase labels, each alphanumeric with
// hyphens, no leading/trailing hyphen. The registry treats the name as an
// opaque key; this only rejects input that can never be a name.
var domainLabelRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// MaxDomainLength caps the full domain name length.
const MaxDomainLength = 253

// ValidateDomainName validates a domain name key.
func ValidateDomainName(name string) error {
	if name == "" {
		return errors.New("domain name cannot be empty")
	}
	if len(name) > MaxDomainLength {
		return errors.New("domain name too long (max 253 chars)")
	}
	if strings.Contains(name, "..") {
		return errors.New("domain name contains empty label")
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) > 63 {
			return errors.New("domain label too long (max 63 chars)")
		}
		if !domainLabelRegex.MatchString(label) {
			return errors.New("invalid domain name: labels must be lowercase alphanumeric with interior hyphens")
		}
	}
	return nil
}

// ValidateAccountID validates a ledger account / bidder identifier.
// Bidders are identified by API key IDs (UUIDs), but any opaque token of
// reasonable shape is accepted so dev ledgers can use friendly names.
func ValidateAccountID(id string) error {
	if id == "" {
		return errors.New("account id cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("account id too long (max 128 chars)")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return errors.New("account id contains invalid characters")
		}
	}
	return nil
}
