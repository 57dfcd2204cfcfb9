package agent

import "testing"

func TestTypeValid(t *testing.T) {
	tests := []struct {
		in   Type
		want bool
	}{
		{TypeSales, true},
		{TypeTechnical, true},
		{TypeBilling, true},
		{TypeTriage, true},
		{TypeHuman, true},
		{TypeSystem, false},
		{"", false},
		{"marketing", false},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.want {
			t.Errorf("%q.Valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse("sales"); err != nil {
		t.Fatalf("Parse(sales): %v", err)
	}
	if _, err := Parse("system"); err != nil {
		t.Fatalf("Parse(system): %v", err)
	}
	if _, err := Parse("nobody"); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

func TestSourceAndDisplayName(t *testing.T) {
	if got := TypeBilling.Source(); got != "billing-agent" {
		t.Errorf("Source = %q", got)
	}
	if got := TypeTechnical.DisplayName(); got != "Technical Support" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := Type("custom").DisplayName(); got != "custom" {
		t.Errorf("DisplayName fallback = %q", got)
	}
}

func TestDefaultProfilesValid(t *testing.T) {
	profiles := DefaultProfiles()
	for _, d := range Domains() {
		p, ok := profiles[d]
		if !ok {
			t.Fatalf("missing default profile for %s", d)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("profile %s: %v", d, err)
		}
	}
	if profiles[TypeBilling].Temperature >= profiles[TypeSales].Temperature {
		t.Error("billing should be more deterministic than sales")
	}
}

func TestFallbackGraphHasNoSelfLoops(t *testing.T) {
	for d, p := range DefaultProfiles() {
		if p.Fallback == d {
			t.Errorf("%s falls back to itself", d)
		}
	}
}

func TestProfileValidateRejectsSelfFallback(t *testing.T) {
	p := DefaultProfiles()[TypeSales]
	p.Fallback = TypeSales
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for self fallback")
	}
}

func TestErrorReason(t *testing.T) {
	p := DefaultProfiles()[TypeBilling]
	if got := p.ErrorReason(); got != "Billing agent encountered an error" {
		t.Errorf("ErrorReason = %q", got)
	}
}
