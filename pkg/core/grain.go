package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Grain is a time truncation granularity.
type Grain string

// Grain constants, finest first.
const (
	GrainDay     Grain = "day"
	GrainWeek    Grain = "week"
	GrainMonth   Grain = "month"
	GrainQuarter Grain = "quarter"
	GrainYear    Grain = "year"
)

var grainRank = map[Grain]int{
	GrainDay:     0,
	GrainWeek:    1,
	GrainMonth:   2,
	GrainQuarter: 3,
	GrainYear:    4,
}

// Grains returns every supported grain from finest to coarsest.
func Grains() []Grain {
	return []Grain{GrainDay, GrainWeek, GrainMonth, GrainQuarter, GrainYear}
}

// ParseGrain parses a grain name. Plural forms ("days") are accepted.
func ParseGrain(s string) (Grain, error) {
	g := Grain(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !g.Valid() {
		return "", fmt.Errorf("unknown time grain %q (expected one of day, week, month, quarter, year)", s)
	}
	return g, nil
}

// Valid reports whether g is a known grain.
func (g Grain) Valid() bool {
	_, ok := grainRank[g]
	return ok
}

// FinerThan reports whether g truncates below other.
// Week and month are treated as a linear order.
func (g Grain) FinerThan(other Grain) bool {
	return grainRank[g] < grainRank[other]
}

// Window bounds a cumulative metric to the last Count buckets of Grain.
type Window struct {
	Count int
	Grain Grain
}

// ParseWindow parses a window such as "7 days" or "1 month".
func ParseWindow(s string) (*Window, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return nil, fmt.Errorf("invalid window %q: expected \"<count> <grain>\"", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("invalid window %q: count must be a positive integer", s)
	}
	g, err := ParseGrain(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid window %q: %w", s, err)
	}
	return &Window{Count: n, Grain: g}, nil
}

func (w Window) String() string {
	if w.Count == 1 {
		return fmt.Sprintf("1 %s", w.Grain)
	}
	return fmt.Sprintf("%d %ss", w.Count, w.Grain)
}
