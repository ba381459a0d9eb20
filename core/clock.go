package core

import "time"

// RealClock is the production Clock backed by the standard library.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Sleep(d time.Duration)            { time.Sleep(d) }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// DefaultClock is the Clock every constructor in this module falls back to
// when none is supplied.
var DefaultClock Clock = RealClock{}
