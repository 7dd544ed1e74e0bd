package cohort

import (
	"errors"
	"fmt"

	"github.com/Valkje/heart-failure/duration"
)

// ErrNoJump is returned by SelectCutoff when the censoring counts have no
// jump at least as large as the policy's threshold and no fixed cutoff
// was given.
var ErrNoJump = errors.New("cohort: no censoring jump satisfies the cutoff policy")

// Counts partitions the patients at a candidate cutoff time T.
type Counts struct {
	T int

	// Censored is the number of patients without an event whose
	// follow-up ended before T.
	Censored int

	// Deceased is the number of patients with an event before T.
	Deceased int

	// AtRisk is the number of patients with follow-up time T or
	// longer.
	AtRisk int
}

// Total returns the number of patients counted.
func (c Counts) Total() int {
	return c.Censored + c.Deceased + c.AtRisk
}

// CensoringCounts partitions the patients at cutoff time t.
func CensoringCounts(recs []Patient, t int) Counts {

	c := Counts{T: t}
	tf := float64(t)
	for i := range recs {
		switch {
		case recs[i].Time >= tf:
			c.AtRisk++
		case recs[i].Event:
			c.Deceased++
		default:
			c.Censored++
		}
	}

	return c
}

// CensoringTable returns the counts for every integer cutoff from tmin
// to tmax, inclusive.
func CensoringTable(recs []Patient, tmin, tmax int) []Counts {

	var tab []Counts
	for t := tmin; t <= tmax; t++ {
		tab = append(tab, CensoringCounts(recs, t))
	}

	return tab
}

// CutoffPolicy determines how SelectCutoff chooses the cutoff.
type CutoffPolicy struct {

	// JumpSize is the smallest increase in the censored count between
	// consecutive cutoffs that is treated as a jump.
	JumpSize int `yaml:"jump_size"`

	// Fixed, if not nil, is used as the cutoff without inspecting the
	// counts.
	Fixed *int `yaml:"fixed"`
}

// DefaultCutoffPolicy returns the policy used when none is configured.
func DefaultCutoffPolicy() CutoffPolicy {
	return CutoffPolicy{JumpSize: 5}
}

// SelectCutoff returns the cutoff time immediately preceding the first
// jump in the censored count.  A jump at t means that the censored count
// at t+1 exceeds the count at t by at least policy.JumpSize.  The table
// must be ordered by time, as returned by CensoringTable.
func SelectCutoff(table []Counts, policy CutoffPolicy) (int, error) {

	if policy.Fixed != nil {
		return *policy.Fixed, nil
	}

	if policy.JumpSize < 1 {
		return 0, fmt.Errorf("cohort: jump size %d must be positive", policy.JumpSize)
	}

	for i := 0; i+1 < len(table); i++ {
		if table[i+1].T != table[i].T+1 {
			return 0, fmt.Errorf("cohort: censoring table is not consecutive at t=%d", table[i].T)
		}
		if table[i+1].Censored-table[i].Censored >= policy.JumpSize {
			return table[i].T, nil
		}
	}

	return 0, ErrNoJump
}

// ApplyCutoff returns the patients that were followed to the cutoff or
// had an event, dropping those censored before it.  The input is not
// modified.
func ApplyCutoff(recs []Patient, cutoff int) []Patient {

	var out []Patient
	tf := float64(cutoff)
	for _, p := range recs {
		if p.Time < tf && !p.Event {
			continue
		}
		out = append(out, p)
	}

	return out
}

// CensoringCurve returns the Kaplan-Meier estimate of the censoring
// distribution, obtained by treating censoring as the event and deaths
// as censored observations.
func CensoringCurve(recs []Patient) (*duration.SurvfuncRight, error) {

	time := make([]float64, len(recs))
	rstatus := make([]float64, len(recs))
	for i, p := range recs {
		time[i] = p.Time
		rstatus[i] = 1 - b2f(p.Event)
	}

	return duration.NewSurvfuncRightFromSlices(time, rstatus, nil, nil)
}
