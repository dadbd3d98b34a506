package gesture

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
		want   Category
	}{
		{"no motion", 0, 0, Subtle},
		{"small right", 6, 0, Subtle},
		{"small up", 0, -9.9, Subtle},
		{"right", 50, 0, Right},
		{"right with drift", 50, 30, Right},
		{"left", -50, 0, Left},
		{"left with drift down", -50, 20, Left},
		{"left with drift up", -50, -20, Left},
		{"down", 0, 50, Down},
		{"down with drift", 20, 50, Down},
		{"up", 0, -50, Up},
		{"up with drift", -20, -50, Up},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mag := math.Hypot(tt.dx, tt.dy)
			if got := Classify(tt.dx, tt.dy, mag); got != tt.want {
				t.Errorf("Classify(%v, %v, %v) = %q, want %q", tt.dx, tt.dy, mag, got, tt.want)
			}
		})
	}
}

func TestClassify_SubtleOverridesAngle(t *testing.T) {
	// Magnitude is checked before any angle rule.
	if got := Classify(0, -200, 9); got != Subtle {
		t.Errorf("expected subtle for magnitude 9, got %q", got)
	}
	if got := Classify(0, -200, 10); got != Up {
		t.Errorf("expected up for magnitude 10, got %q", got)
	}
}

func TestClassify_ScenarioA(t *testing.T) {
	// (y=300, x=300) -> (y=100, x=300)
	dx, dy := 0.0, -200.0
	if a := Angle(dx, dy); math.Abs(a+90) > 1e-9 {
		t.Fatalf("Angle = %f, want -90", a)
	}
	if got := Classify(dx, dy, 200); got != Up {
		t.Errorf("Classify = %q, want up", got)
	}
}

func TestClassify_ScenarioB(t *testing.T) {
	// (y=300, x=300) -> (y=303, x=304): magnitude 5
	dx, dy := 4.0, 3.0
	mag := math.Hypot(dx, dy)
	if mag != 5 {
		t.Fatalf("magnitude = %f, want 5", mag)
	}
	if got := Classify(dx, dy, mag); got != Subtle {
		t.Errorf("Classify = %q, want subtle", got)
	}
}

func TestClassify_Diagonals(t *testing.T) {
	// Exact diagonals fall outside every direction sector. Above the
	// rotation magnitude they rotate; otherwise they are unknown.
	tests := []struct {
		name      string
		dx, dy    float64
		magnitude float64
		angle     float64
		want      Category
	}{
		{"down right", 40, 40, 56, 45, RotateCW},
		{"down left", -40, 40, 56, 135, RotateCW},
		{"up right", 40, -40, 56, -45, RotateCCW},
		{"up left", -40, -40, 56, -135, RotateCCW},
		{"down right small", 10, 10, 20, 45, Unknown},
		{"down left small", -10, 10, 14.2, 135, Unknown},
		{"up right small", 10, -10, 10, -45, Unknown},
		{"up left small", -10, -10, 25, -135, Unknown},
		{"at rotation magnitude", 30, 30, 30, 45, Unknown},
		{"just above rotation magnitude", -30, -30, 30.01, -135, RotateCCW},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if a := Angle(tt.dx, tt.dy); a != tt.angle {
				t.Fatalf("Angle(%v, %v) = %v, want %v", tt.dx, tt.dy, a, tt.angle)
			}
			if got := Classify(tt.dx, tt.dy, tt.magnitude); got != tt.want {
				t.Errorf("Classify(%v, %v, %v) = %q, want %q", tt.dx, tt.dy, tt.magnitude, got, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		dx := float64(i*7%200 - 100)
		dy := float64(i*13%200 - 100)
		mag := math.Hypot(dx, dy)

		first := Classify(dx, dy, mag)
		for j := 0; j < 3; j++ {
			if got := Classify(dx, dy, mag); got != first {
				t.Fatalf("Classify(%v,%v,%v) not deterministic: %q then %q", dx, dy, mag, first, got)
			}
		}
		if !first.Valid() {
			t.Errorf("Classify returned unknown category value %q", first)
		}
	}
}

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
	}
	if Category("wave").Valid() {
		t.Error("wave should not be valid")
	}
}
