package daywindow

import (
	"testing"
	"time"
)

func TestDaySameZonedDay(t *testing.T) {
	w := MustLoad("Asia/Kolkata")
	ist := w.Location()

	tests := []struct {
		name string
		a    time.Time
		b    time.Time
		same bool
	}{
		{
			name: "morning and night of the same IST day",
			a:    time.Date(2026, 1, 5, 0, 30, 0, 0, ist),
			b:    time.Date(2026, 1, 5, 23, 59, 59, 0, ist),
			same: true,
		},
		{
			name: "either side of IST midnight",
			a:    time.Date(2026, 1, 5, 23, 59, 0, 0, ist),
			b:    time.Date(2026, 1, 6, 0, 1, 0, 0, ist),
			same: false,
		},
		{
			name: "UTC evening is already the next IST day",
			a:    time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC),
			b:    time.Date(2026, 1, 6, 4, 0, 0, 0, ist),
			same: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SameDay(w.Day(tt.a), w.Day(tt.b))
			if got != tt.same {
				t.Errorf("SameDay(Day(%v), Day(%v)) = %v, want %v", tt.a, tt.b, got, tt.same)
			}
		})
	}
}

func TestDayIsCanonical(t *testing.T) {
	w := MustLoad("Asia/Kolkata")

	day := w.Day(time.Date(2026, 3, 14, 18, 45, 12, 0, w.Location()))
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !day.Equal(want) {
		t.Errorf("Day() = %v, want %v", day, want)
	}
	if day.Location() != time.UTC {
		t.Errorf("Day() location = %v, want UTC", day.Location())
	}
}

func TestAddDays(t *testing.T) {
	day := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	if got := AddDays(day, 3); !got.Equal(time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("AddDays(+3) = %v", got)
	}
	if got := AddDays(day, -1); !got.Equal(time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("AddDays(-1) = %v", got)
	}
}

func TestLoadUnknownZone(t *testing.T) {
	if _, err := Load("Not/AZone"); err == nil {
		t.Fatal("Load of unknown zone should fail")
	}
}
