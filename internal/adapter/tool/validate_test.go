package tool

import (
	"errors"
	"fmt"
	"testing"
)

func TestRequireField(t *testing.T) {
	if err := RequireField("query", "kohli"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := RequireField("query", ""); err == nil {
		t.Error("expected error for empty value")
	}
}

func TestValidateRange(t *testing.T) {
	cases := []struct {
		value   int
		wantErr bool
	}{
		{1, false},
		{20, false},
		{0, true},
		{21, true},
	}
	for _, tc := range cases {
		err := ValidateRange("top_k", tc.value, 1, 20)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateRange(top_k, %d) err = %v, wantErr = %v", tc.value, err, tc.wantErr)
		}
	}
}

func TestValidateAll(t *testing.T) {
	sentinel := fmt.Errorf("second check failed")
	err := ValidateAll(nil, sentinel, fmt.Errorf("third"))
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want first failing check", err)
	}
	if err := ValidateAll(nil, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
