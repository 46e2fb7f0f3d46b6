package workflow

import "testing"

func TestDetectVariance(t *testing.T) {
	cases := []struct {
		name     string
		expected int
		actual   int
		wantNil  bool
		wantDiff int
	}{
		{"match", 50, 50, true, 0},
		{"shortfall", 50, 48, false, -2},
		{"overage", 50, 53, false, 3},
		{"zero zero", 0, 0, true, 0},
		{"tracked with no serial movement", 0, 4, false, 4},
	}
	for _, c := range cases {
		v := DetectVariance(7, 21, c.expected, c.actual)
		if c.wantNil {
			if v != nil {
				t.Fatalf("%s: expected nil, got %+v", c.name, v)
			}
			continue
		}
		if v == nil {
			t.Fatalf("%s: expected a variance", c.name)
		}
		if v.ShiftId != 7 || v.PackId != 21 {
			t.Fatalf("%s: keys = {%d %d}", c.name, v.ShiftId, v.PackId)
		}
		if v.Expected != c.expected || v.Actual != c.actual || v.Difference != c.wantDiff {
			t.Fatalf("%s: variance = {%d %d %d}", c.name, v.Expected, v.Actual, v.Difference)
		}
	}
}
