package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/lottery_backend/utils"
)

func TestTicketsSoldContinuing(t *testing.T) {
	cases := []struct {
		opening string
		closing string
		want    int
	}{
		{"000", "015", 15},
		{"000", "000", 0},
		{"005", "005", 0},
		{"042", "043", 1},
		{"000", "999", 999},
		{"10", "25", 15}, // width is not enforced, only the numeric range
	}
	for _, c := range cases {
		got, err := TicketsSoldContinuing(c.opening, c.closing)
		if err != nil {
			t.Fatalf("TicketsSoldContinuing(%q, %q): unexpected error %v", c.opening, c.closing, err)
		}
		if got != c.want {
			t.Fatalf("TicketsSoldContinuing(%q, %q) = %d, want %d", c.opening, c.closing, got, c.want)
		}
	}
}

func TestTicketsSoldContinuing_ClosingBeforeOpeningClampsToZero(t *testing.T) {
	got, err := TicketsSoldContinuing("020", "010")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestTicketsSoldContinuing_FullRangeProperty(t *testing.T) {
	for o := 0; o <= 999; o += 37 {
		for c := 0; c <= 999; c += 41 {
			got, err := TicketsSoldContinuing(serialString(o), serialString(c))
			if err != nil {
				t.Fatalf("o=%d c=%d: unexpected error %v", o, c, err)
			}
			want := c - o
			if want < 0 {
				want = 0
			}
			if got != want {
				t.Fatalf("o=%d c=%d: got %d want %d", o, c, got, want)
			}
		}
	}
}

func TestTicketsSoldDepletion(t *testing.T) {
	cases := []struct {
		opening   string
		serialEnd string
		want      int
	}{
		{"005", "014", 10},
		{"000", "049", 50},
		{"000", "000", 1},
		{"049", "049", 1},
		{"000", "999", 1000},
	}
	for _, c := range cases {
		got, err := TicketsSoldDepletion(c.opening, c.serialEnd)
		if err != nil {
			t.Fatalf("TicketsSoldDepletion(%q, %q): unexpected error %v", c.opening, c.serialEnd, err)
		}
		if got != c.want {
			t.Fatalf("TicketsSoldDepletion(%q, %q) = %d, want %d", c.opening, c.serialEnd, got, c.want)
		}
	}
}

func TestTicketsSoldDepletion_OpeningPastEndClampsToZero(t *testing.T) {
	got, err := TicketsSoldDepletion("050", "048")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestParseSerial_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		field string
		value string
	}{
		{"openingSerial", ""},
		{"openingSerial", "abc"},
		{"closingSerial", "12a"},
		{"closingSerial", "-5"},
		{"serialEnd", "1000"},
		{"serialEnd", "01 "},
	}
	for _, c := range cases {
		_, err := ParseSerial(c.field, c.value)
		if err == nil {
			t.Fatalf("ParseSerial(%q, %q): expected error", c.field, c.value)
		}
		var ve *utils.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("ParseSerial(%q, %q): expected ValidationError, got %T", c.field, c.value, err)
		}
		if ve.Field != c.field {
			t.Fatalf("ParseSerial(%q, %q): error names field %q", c.field, c.value, ve.Field)
		}
		if ve.Value != c.value {
			t.Fatalf("ParseSerial(%q, %q): error names value %q", c.field, c.value, ve.Value)
		}
	}
}

func serialString(n int) string {
	s := "000"
	b := []byte(s)
	b[2] = byte('0' + n%10)
	b[1] = byte('0' + (n/10)%10)
	b[0] = byte('0' + (n/100)%10)
	return string(b)
}
