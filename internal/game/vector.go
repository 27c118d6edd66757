package game

// Vector is a directed, positioned line segment on the board.
// (DX, DY) is one of the eight unit directions; Length counts cells
// including the starting one.
type Vector struct {
	X, Y   int
	DX, DY int
	Length int
}

// End returns the coordinates of the last cell of the segment.
func (v Vector) End() (int, int) {
	return v.X + v.DX*(v.Length-1), v.Y + v.DY*(v.Length-1)
}

// Extend grows the segment by `left` cells before its start and `right`
// cells past its end. Negative values shrink it.
func (v Vector) Extend(left, right int) Vector {
	return Vector{
		X:      v.X - left*v.DX,
		Y:      v.Y - left*v.DY,
		DX:     v.DX,
		DY:     v.DY,
		Length: v.Length + left + right,
	}
}

// Crop trims the segment so both endpoints fall inside the half-open
// rectangle [x1,x2) x [y1,y2).
func (v Vector) Crop(x1, y1, x2, y2 int) Vector {
	overhang := func(coord, min, max int) int {
		clamped := coord
		if clamped < min {
			clamped = min
		}
		if clamped > max-1 {
			clamped = max - 1
		}
		return coord - clamped
	}

	ex, ey := v.End()

	left := abs(overhang(v.X, x1, x2))
	if o := abs(overhang(v.Y, y1, y2)); o > left {
		left = o
	}
	right := abs(overhang(ex, x1, x2))
	if o := abs(overhang(ey, y1, y2)); o > right {
		right = o
	}

	return v.Extend(-left, -right)
}

// InBounds reports whether both endpoints fall inside the half-open
// rectangle [x1,x2) x [y1,y2).
func (v Vector) InBounds(x1, y1, x2, y2 int) bool {
	ex, ey := v.End()
	return x1 <= v.X && v.X < x2 &&
		y1 <= v.Y && v.Y < y2 &&
		x1 <= ex && ex < x2 &&
		y1 <= ey && ey < y2
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
