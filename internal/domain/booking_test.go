package domain

import (
	"testing"
	"time"
)

func TestParseBookingStatus(t *testing.T) {
	tests := []struct {
		input string
		want  BookingStatus
		ok    bool
	}{
		{"open", BookingOpen, true},
		{"full", BookingFull, true},
		{"cancelled", BookingCancelled, true},
		{"completed", BookingCompleted, true},
		{"pending", "", false},
		{"", "", false},
		{"OPEN", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseBookingStatus(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseBookingStatus(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBookingStatus_Terminal(t *testing.T) {
	if BookingOpen.Terminal() || BookingFull.Terminal() {
		t.Error("open and full must not be terminal")
	}
	if !BookingCancelled.Terminal() || !BookingCompleted.Terminal() {
		t.Error("cancelled and completed must be terminal")
	}
}

func TestGroupBooking_Overlaps(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	mk := func(id, resource string, startOffset, endOffset time.Duration) *GroupBooking {
		return &GroupBooking{
			ID:       id,
			Resource: resource,
			StartsAt: base.Add(startOffset),
			EndsAt:   base.Add(endOffset),
		}
	}

	tests := []struct {
		name string
		a, b *GroupBooking
		want bool
	}{
		{"identical windows", mk("a", "studio-1", 0, time.Hour), mk("b", "studio-1", 0, time.Hour), true},
		{"partial overlap", mk("a", "studio-1", 0, time.Hour), mk("b", "studio-1", 30*time.Minute, 2*time.Hour), true},
		{"contained window", mk("a", "studio-1", 0, 3*time.Hour), mk("b", "studio-1", time.Hour, 2*time.Hour), true},
		{"touching boundaries", mk("a", "studio-1", 0, time.Hour), mk("b", "studio-1", time.Hour, 2*time.Hour), false},
		{"disjoint windows", mk("a", "studio-1", 0, time.Hour), mk("b", "studio-1", 2*time.Hour, 3*time.Hour), false},
		{"different resources", mk("a", "studio-1", 0, time.Hour), mk("b", "studio-2", 0, time.Hour), false},
		{"same booking", mk("a", "studio-1", 0, time.Hour), mk("a", "studio-1", 0, time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCreateBookingInput_Validate(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	valid := CreateBookingInput{
		Title:    "Evening rehearsal",
		Resource: "studio-1",
		StartsAt: base,
		EndsAt:   base.Add(2 * time.Hour),
		Capacity: 8,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CreateBookingInput)
	}{
		{"empty title", func(in *CreateBookingInput) { in.Title = "  " }},
		{"empty resource", func(in *CreateBookingInput) { in.Resource = "" }},
		{"zero capacity", func(in *CreateBookingInput) { in.Capacity = 0 }},
		{"negative capacity", func(in *CreateBookingInput) { in.Capacity = -3 }},
		{"ends before starts", func(in *CreateBookingInput) { in.EndsAt = in.StartsAt.Add(-time.Hour) }},
		{"zero-length window", func(in *CreateBookingInput) { in.EndsAt = in.StartsAt }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if KindOf(err) != KindValidation {
				t.Errorf("expected KindValidation, got %v", KindOf(err))
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"alice@example.com", "a.b+tag@example.co.uk"}
	for _, s := range valid {
		if !ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "not-an-email", "missing@", "@example.com", "Alice <alice@example.com>"}
	for _, s := range invalid {
		if ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = true, want false", s)
		}
	}
}
