package script

import (
	"fmt"
	"time"
)

// Profile names
const (
	ProfileInteractive = "interactive"
	ProfileBatch       = "batch"
)

// Delays are the pauses before sending a command. The engine's plot
// device drops input sent too quickly after a contour render.
type Delays struct {
	// Base applies to every command without a more specific delay
	Base time.Duration
	// Prep applies from the electron preparation up to the first plot
	Prep time.Duration
	// Plot applies to the contour and device-close commands
	Plot time.Duration
	// Settle applies after a plot has been closed
	Settle time.Duration
}

// DefaultDelays are the console pauses of the interactive analyser
func DefaultDelays() Delays {
	return Delays{
		Base:   50 * time.Millisecond,
		Prep:   100 * time.Millisecond,
		Plot:   2 * time.Second,
		Settle: 10 * time.Millisecond,
	}
}

// Profile is one named configuration of the record sequence. The two
// profiles use different distribution-function ranges and outputs.
type Profile struct {
	Name string
	// DFRA is the IDL literal for the distribution-function plot range
	DFRA string
	// Plots enables the contour and pitch-angle PostScript files
	Plots  bool
	Delays Delays
}

// Interactive plots both figures and dumps contour data under the working
// directory.
func Interactive() Profile {
	return Profile{
		Name:   ProfileInteractive,
		DFRA:   "[1e-19,1e-6]",
		Plots:  true,
		Delays: DefaultDelays(),
	}
}

// Batch only dumps contour data, under a fixed root
func Batch() Profile {
	base := DefaultDelays().Base
	return Profile{
		Name:  ProfileBatch,
		DFRA:  "[1e-17,1e-9]",
		Plots: false,
		Delays: Delays{
			Base:   base,
			Prep:   base,
			Plot:   base,
			Settle: base,
		},
	}
}

// ProfileByName returns the named profile
func ProfileByName(name string) (Profile, error) {
	switch name {
	case ProfileInteractive:
		return Interactive(), nil
	case ProfileBatch:
		return Batch(), nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
}

// WithoutDelays returns p with every delay zeroed
func (p Profile) WithoutDelays() Profile {
	p.Delays = Delays{}
	return p
}
