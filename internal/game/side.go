package game

import "fmt"

// Side identifies one of the two participants of a game.
// Wire encoding: RED=0, BLUE=1.
type Side int

const (
	Red  Side = 0
	Blue Side = 1
)

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == Red {
		return Blue
	}
	return Red
}

func (s Side) String() string {
	switch s {
	case Red:
		return "RED"
	case Blue:
		return "BLUE"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == Red || s == Blue
}
