package game

import "testing"

func TestVectorEnd(t *testing.T) {
	v := Vector{X: 2, Y: 3, DX: 1, DY: -1, Length: 4}
	x, y := v.End()
	if x != 5 || y != 0 {
		t.Errorf("end = (%d,%d), want (5,0)", x, y)
	}

	single := Vector{X: 1, Y: 1, DX: 1, DY: 0, Length: 1}
	x, y = single.End()
	if x != 1 || y != 1 {
		t.Errorf("length-1 vector should end at its start, got (%d,%d)", x, y)
	}
}

func TestVectorExtend(t *testing.T) {
	v := Vector{X: 3, Y: 3, DX: 1, DY: 1, Length: 2}

	grown := v.Extend(1, 2)
	if grown.X != 2 || grown.Y != 2 || grown.Length != 5 {
		t.Errorf("extend(1,2) = %+v", grown)
	}
	ex, ey := grown.End()
	if ex != 6 || ey != 6 {
		t.Errorf("extended end = (%d,%d), want (6,6)", ex, ey)
	}

	shrunk := grown.Extend(-1, -2)
	if shrunk != v {
		t.Errorf("shrinking back gives %+v, want %+v", shrunk, v)
	}
}

func TestVectorCrop(t *testing.T) {
	// Overhangs the left and top edge by two cells.
	v := Vector{X: -2, Y: -2, DX: 1, DY: 1, Length: 6}
	cropped := v.Crop(0, 0, 7, 7)
	if cropped.X != 0 || cropped.Y != 0 || cropped.Length != 4 {
		t.Errorf("cropped = %+v", cropped)
	}

	// Fully inside stays untouched.
	in := Vector{X: 1, Y: 1, DX: 1, DY: 0, Length: 3}
	if got := in.Crop(0, 0, 7, 7); got != in {
		t.Errorf("in-bounds vector changed by crop: %+v", got)
	}

	// Overhang past the far edge is trimmed from the right.
	far := Vector{X: 4, Y: 0, DX: 1, DY: 0, Length: 5}
	cropped = far.Crop(0, 0, 7, 7)
	if cropped.X != 4 || cropped.Length != 3 {
		t.Errorf("far-edge crop = %+v", cropped)
	}
}

func TestVectorInBounds(t *testing.T) {
	v := Vector{X: 0, Y: 3, DX: 1, DY: -1, Length: 4}
	if !v.InBounds(0, 0, 7, 7) {
		t.Errorf("%+v should be in bounds", v)
	}
	if v.Extend(1, 0).InBounds(0, 0, 7, 7) {
		t.Errorf("extending past the origin should leave bounds")
	}
	if (Vector{X: 6, Y: 0, DX: 1, DY: 0, Length: 2}).InBounds(0, 0, 7, 7) {
		t.Errorf("segment ending at x=7 is out of the half-open range")
	}
}
