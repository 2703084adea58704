package xslt

import (
	"math"
	"testing"
)

func TestDecimalFormat(t *testing.T) {
	tests := []struct {
		Value   float64
		Pattern string
		Want    string
	}{
		{Value: 1234.5, Pattern: "#,##0.00", Want: "1,234.50"},
		{Value: 1234567, Pattern: "#,###", Want: "1,234,567"},
		{Value: 0.5, Pattern: "0.###", Want: "0.5"},
		{Value: 5, Pattern: "000", Want: "005"},
		{Value: 0, Pattern: "#", Want: "0"},
		{Value: 2.5, Pattern: "#.#", Want: "2.5"},
		{Value: -3, Pattern: "0", Want: "-3"},
		{Value: -3, Pattern: "0;(0)", Want: "(3)"},
		{Value: 0.25, Pattern: "0%", Want: "25%"},
		{Value: 0.005, Pattern: "0‰", Want: "5‰"},
		{Value: 42, Pattern: "$ 0.00", Want: "$ 42.00"},
		{Value: math.NaN(), Pattern: "0", Want: "NaN"},
		{Value: math.Inf(1), Pattern: "0", Want: "Infinity"},
		{Value: math.Inf(-1), Pattern: "0", Want: "-Infinity"},
	}
	df := DefaultDecimalFormat()
	for _, c := range tests {
		got, err := df.Format(c.Value, c.Pattern)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", c.Pattern, err)
			continue
		}
		if got != c.Want {
			t.Errorf("%s: want %s, got %s", c.Pattern, c.Want, got)
		}
	}
}

func TestDecimalFormatInvalid(t *testing.T) {
	patterns := []string{
		"",
		"abc",
		"0.0.0",
		"0;0;0",
		"#0#",
		"0.0#0",
		"0,",
		"0%‰",
	}
	df := DefaultDecimalFormat()
	for _, p := range patterns {
		if _, err := df.Format(1, p); err == nil {
			t.Errorf("%q: expected error", p)
		}
	}
}

func TestDecimalFormatOptions(t *testing.T) {
	options := map[string]string{
		"name":               "eu",
		"decimal-separator":  ",",
		"grouping-separator": ".",
		"NaN":                "n/a",
	}
	df, err := decimalFormatFromOptions(options)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	got, err := df.Format(1234.5, "#.##0,00")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if want := "1.234,50"; got != want {
		t.Errorf("format mismatched! want %s, got %s", want, got)
	}
	if got, _ := df.Format(math.NaN(), "0"); got != "n/a" {
		t.Errorf("NaN mismatched! want n/a, got %s", got)
	}

	if _, err := decimalFormatFromOptions(map[string]string{"digit": "##"}); err == nil {
		t.Errorf("expected error for multi character digit")
	}
}
