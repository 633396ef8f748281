package domain

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"campus.edu.", false},
		{"a.b.c.", false},
		{"*.campus.edu.", false},
		{"www.*.campus.edu.", false},
		{"label-with-hyphen.com.", false},
		{"", true},
		{".", false},
		{"too-long-label-" + string(make([]byte, 50)) + ".com.", true},
		{"-start-with-hyphen.com.", true},
		{"end-with-hyphen-.com.", true},
		{"invalid!char.com.", true},
		{"double..dot.", true},
		{"missing-trailing-dot.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateName(tt.name); (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestValidateQuery(t *testing.T) {
	if err := ValidateQuery(Query{Name: "www.campus.edu.", Type: "aaaa"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateQuery(Query{Name: "www.campus.edu.", Type: "BOGUS"})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
	if err := ValidateQuery(Query{Name: "www.campus.edu", Type: "A"}); err == nil {
		t.Errorf("expected error for relative name")
	}
}
