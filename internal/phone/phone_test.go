package phone

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "(415) 555-2671", want: "+14155552671"},
		{in: "415-555-2671", want: "+14155552671"},
		{in: "1 (415) 555-2671", want: "+14155552671"},
		{in: "+14155552671", want: "+14155552671"},
		{in: "+1 415 555 2671", want: "+14155552671"},
		{in: "+44 20 7183 8750", want: "+442071838750"},
		{in: "", wantErr: true},
		{in: "hello", wantErr: true},
		{in: "123", wantErr: true},
		{in: "(041) 555-2671", wantErr: true}, // area code can't start with 0
		{in: "+0123456789", wantErr: true},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("Normalize(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Normalize(%q): unexpected err: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeRegion(t *testing.T) {
	cases := []struct {
		in      string
		region  string
		want    string
		wantErr bool
	}{
		{in: "020 7183 8750", region: "GB", want: "+442071838750"},
		{in: "(0) 20 7183 8750", region: "GB", want: "+442071838750"},
		{in: "030 123456", region: "DE", want: "+4930123456"},
		{in: "(415) 555-2671", region: "US", want: "+14155552671"},
		// A full international number wins over the stated region.
		{in: "+14155552671", region: "GB", want: "+14155552671"},
		{in: "020 7183 8750", region: "US", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeRegion(tc.in, tc.region)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NormalizeRegion(%q, %q): expected error, got %q", tc.in, tc.region, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeRegion(%q, %q): unexpected err: %v", tc.in, tc.region, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeRegion(%q, %q) = %q, want %q", tc.in, tc.region, got, tc.want)
		}
	}
}

func TestNormalize_E164FixedPoint(t *testing.T) {
	first, err := Normalize("(415) 555-2671")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	second, err := Normalize(first)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if first != second {
		t.Fatalf("expected fixed point, got %q then %q", first, second)
	}
}

func TestExtractFromText(t *testing.T) {
	text := "Call me at (415) 555-2671 or the office 415.555.0100.\n" +
		"Reference number 12345 should not match.\n" +
		"Cell again: 415-555-2671"

	got := ExtractFromText(text)
	want := []string{"+14155552671", "+14155550100"}
	if len(got) != len(want) {
		t.Fatalf("expected %d numbers, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestExtractFromText_NoMatches(t *testing.T) {
	if got := ExtractFromText("no numbers here"); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}
