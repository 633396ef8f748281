package domain

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/miekg/dns"
)

var validLabelRegex = regexp.MustCompile(`^[a-zA-Z0-9_]([a-zA-Z0-9_-]{0,61}[a-zA-Z0-9_])?$`)

// ValidateName checks that name is a fully qualified domain name whose labels
// are either the wildcard "*" or hostname-like.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if name == "." {
		return nil
	}
	if !strings.HasSuffix(name, ".") {
		return fmt.Errorf("name must end with a dot (FQDN)")
	}
	if len(name) > 254 {
		return fmt.Errorf("name exceeds 253 characters")
	}

	labels := strings.Split(strings.TrimSuffix(name, "."), ".")
	for _, label := range labels {
		if label == "" {
			return fmt.Errorf("name contains empty label")
		}
		if label == "*" {
			continue
		}
		if len(label) > 63 {
			return fmt.Errorf("label '%s' exceeds 63 characters", label)
		}
		if !validLabelRegex.MatchString(label) {
			return fmt.Errorf("label '%s' contains invalid characters or format", label)
		}
	}
	return nil
}

// ValidateQuery checks a query loaded from a query document.
func ValidateQuery(q Query) error {
	if err := ValidateName(q.Name); err != nil {
		return fmt.Errorf("query name %q: %w", q.Name, err)
	}
	if _, ok := dns.StringToType[strings.ToUpper(q.Type)]; !ok {
		return fmt.Errorf("%w: query type %q", ErrUnknownType, q.Type)
	}
	return nil
}
