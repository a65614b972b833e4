package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Speed is a user-selectable step rate multiplier.
type Speed int

const (
	Speed1   Speed = 1
	Speed5   Speed = 5
	SpeedMax Speed = 10
)

// DefaultBaseDelay is the pause between steps at 1x.
const DefaultBaseDelay = 300 * time.Millisecond

// Speeds lists the selectable levels in ascending order.
func Speeds() []Speed {
	return []Speed{Speed1, Speed5, SpeedMax}
}

// Valid reports whether s is one of the selectable levels.
func (s Speed) Valid() bool {
	switch s {
	case Speed1, Speed5, SpeedMax:
		return true
	}
	return false
}

// Max reports whether s runs steps back-to-back without suspension.
func (s Speed) Max() bool {
	return s == SpeedMax
}

func (s Speed) String() string {
	if s == SpeedMax {
		return "max"
	}
	return fmt.Sprintf("%dx", int(s))
}

// Delay is the pause between steps for base: base/s, zero at max.
func (s Speed) Delay(base time.Duration) time.Duration {
	if s.Max() || s <= 0 {
		return 0
	}
	return base / time.Duration(s)
}

// Multiplier is the animation progress multiplier for this speed.
func (s Speed) Multiplier() float64 {
	return float64(s)
}

// ParseSpeed accepts "1", "1x", "5", "5x", "10" and "max".
func ParseSpeed(v string) (Speed, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "1x":
		return Speed1, nil
	case "5", "5x":
		return Speed5, nil
	case "10", "max":
		return SpeedMax, nil
	}
	return 0, &InvalidSpeedError{Value: v}
}

// MarshalText encodes the speed as its display string.
func (s Speed) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &InvalidSpeedError{Value: fmt.Sprint(int(s))}
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses any form accepted by ParseSpeed.
func (s *Speed) UnmarshalText(b []byte) error {
	v, err := ParseSpeed(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// InvalidSpeedError indicates a speed outside the selectable levels.
type InvalidSpeedError struct {
	Value string
}

func (e *InvalidSpeedError) Error() string {
	return fmt.Sprintf("invalid speed %q (want 1x, 5x or max)", e.Value)
}
