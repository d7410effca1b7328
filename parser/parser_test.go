package parser

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "plain pounds", input: "£51.77", want: "51.77", wantOK: true},
		{name: "encoding artifact", input: "Â£20.00", want: "20", wantOK: true},
		{name: "surrounding whitespace", input: "  £13.99 ", want: "13.99", wantOK: true},
		{name: "dollars converted at fixed rate", input: "$10.00", want: "7.5", wantOK: true},
		{name: "bare number", input: "12.50", want: "12.5", wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "garbage", input: "£abc", wantOK: false},
		{name: "dollar garbage", input: "$x", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParsePrice(%q) ok=%v, want %v", tt.input, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			want, err := decimal.NewFromString(tt.want)
			if err != nil {
				t.Fatalf("bad want value: %v", err)
			}
			if !got.Equal(want) {
				t.Fatalf("ParsePrice(%q) = %s, want %s", tt.input, got, want)
			}
		})
	}
}

func TestParseAvailability(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantStatus string
		wantQty    int
		qtyPresent bool
	}{
		{name: "in stock with quantity", input: "In stock (19 available)", wantStatus: InStock, wantQty: 19, qtyPresent: true},
		{name: "in stock without quantity", input: "In stock", wantStatus: InStock},
		{name: "lowercase variant", input: "in stock (3 available)", wantStatus: InStock, wantQty: 3, qtyPresent: true},
		{name: "out of stock", input: "Out of stock", wantStatus: OutOfStock},
		{name: "empty", input: "", wantStatus: OutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, qty := ParseAvailability(tt.input)
			if status != tt.wantStatus {
				t.Fatalf("status=%q, want %q", status, tt.wantStatus)
			}
			if tt.qtyPresent {
				if qty == nil || *qty != tt.wantQty {
					t.Fatalf("qty=%v, want %d", qty, tt.wantQty)
				}
			} else if qty != nil {
				t.Fatalf("qty=%d, want nil", *qty)
			}
		})
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{input: "One", want: 1, ok: true},
		{input: "Two", want: 2, ok: true},
		{input: "Three", want: 3, ok: true},
		{input: "Four", want: 4, ok: true},
		{input: "Five", want: 5, ok: true},
		{input: "3", want: 3, ok: true},
		{input: " Five ", want: 5, ok: true},
		{input: "Zero", ok: false},
		{input: "Six", ok: false},
		{input: "6", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseRating(tt.input)
			if tt.ok {
				if got == nil || *got != tt.want {
					t.Fatalf("ParseRating(%q) = %v, want %d", tt.input, got, tt.want)
				}
				return
			}
			if got != nil {
				t.Fatalf("ParseRating(%q) = %d, want nil", tt.input, *got)
			}
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{input: "12", want: 12},
		{input: " 0 ", want: 0},
		{input: "", want: 0},
		{input: "-3", want: 0},
		{input: "many", want: 0},
	}

	for _, tt := range tests {
		if got := ParseReviewCount(tt.input); got != tt.want {
			t.Fatalf("ParseReviewCount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
