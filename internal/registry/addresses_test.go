package registry

import "testing"

func TestLookupCanonicalMastercopyEmbeddedFallback(t *testing.T) {
	r := NewResolver("")
	label, ok := r.Lookup(CanonicalMastercopies, "0xd9Db270c1B5E3Bd161E8c8503c55cEABeE709552")
	if !ok {
		t.Fatalf("expected the canonical 1.3.0 mastercopy to resolve")
	}
	if label != "Safe: Master Copy 1.3.0 (canonical)" {
		t.Fatalf("unexpected label: %q", label)
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	r := NewResolver("")
	lower, ok1 := r.Lookup(CanonicalFactories, "0xa6b71e26c5e0845f74c812102ca7114b6a896ab2")
	upper, ok2 := r.Lookup(CanonicalFactories, "0xA6B71E26C5E0845F74C812102CA7114B6A896AB2")

	if !ok1 || !ok2 {
		t.Fatalf("expected both casings to resolve")
	}
	if lower != upper {
		t.Fatalf("expected case-insensitive lookups to agree: %q vs %q", lower, upper)
	}
}

func TestLookupUnknownAddressMisses(t *testing.T) {
	r := NewResolver("")
	_, ok := r.Lookup(CanonicalMastercopies, "0x0000000000000000000000000000000000dEaD")
	if ok {
		t.Fatalf("expected an arbitrary address not to resolve")
	}
}

func TestLookupNonexistentOverrideDirFallsBackToEmbedded(t *testing.T) {
	r := NewResolver("/nonexistent/override/dir")
	label, ok := r.Lookup(CanonicalFallbackHandlers, "0xf48f2B2d2a534e402487b3ee7C18c33Aec0Fe5e4")
	if !ok {
		t.Fatalf("expected a missing override directory to fall back to the embedded table")
	}
	if label == "" {
		t.Fatalf("expected a non-empty label")
	}
}

func TestAvailableRegistriesListsFive(t *testing.T) {
	if len(AvailableRegistries()) != 5 {
		t.Fatalf("expected 5 canonical registries, got %d", len(AvailableRegistries()))
	}
}
