package geocode

import "testing"

func TestParseAddressComponentsFullAddress(t *testing.T) {
	got := ParseAddressComponents("1600 W Warren Ave, Detroit, MI 48208")
	if got.ZIP != "48208" {
		t.Fatalf("expected zip 48208, got %q", got.ZIP)
	}
	if got.State != "MI" {
		t.Fatalf("expected state MI, got %q", got.State)
	}
	if got.City != "Detroit" {
		t.Fatalf("expected city Detroit, got %q", got.City)
	}
	if got.Street == "" {
		t.Fatalf("expected street extraction")
	}
	if !got.HasZIP() {
		t.Fatalf("HasZIP should be true")
	}
}

func TestParseAddressComponentsZipPlusFour(t *testing.T) {
	got := ParseAddressComponents("PO Box 7, Amherst, MA 01007-0007")
	if got.ZIP != "01007" {
		t.Fatalf("expected 5-digit zip, got %q", got.ZIP)
	}
}

func TestParseAddressComponentsNoZip(t *testing.T) {
	got := ParseAddressComponents("Main Street, Springfield")
	if got.HasZIP() {
		t.Fatalf("expected no zip, got %q", got.ZIP)
	}
}

func TestParseAddressComponentsEmpty(t *testing.T) {
	got := ParseAddressComponents("   ")
	if got != (Components{}) {
		t.Fatalf("expected zero components, got %#v", got)
	}
}

func TestLooksLikeZIP(t *testing.T) {
	cases := map[string]bool{
		"48221":          true,
		" 48221 ":        true,
		"48221-1234":     true,
		"4822":           false,
		"482211":         false,
		"48221 Main St":  false,
		"detroit":        false,
		"":               false,
	}
	for in, want := range cases {
		if got := LooksLikeZIP(in); got != want {
			t.Fatalf("LooksLikeZIP(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCanonicalZIP(t *testing.T) {
	cases := map[string]string{
		"48221":         "48221",
		"48221-1234":    "48221",
		" 01007-0007 ":  "01007",
		"4822":          "",
		"48221 Main St": "",
		"":              "",
	}
	for in, want := range cases {
		if got := CanonicalZIP(in); got != want {
			t.Fatalf("CanonicalZIP(%q) = %q, want %q", in, got, want)
		}
	}
}
