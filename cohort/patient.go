package cohort

import (
	"fmt"

	"github.com/Valkje/heart-failure/statmodel"
)

// Canonical variable names.
const (
	Age                   = "Age"
	BloodPressure         = "BloodPressure"
	SerumCreatinine       = "SerumCreatinine"
	EjectionFraction      = "EjectionFraction"
	SerumSodium           = "SerumSodium"
	Platelets             = "Platelets"
	CreatinePhosphokinase = "CreatinePhosphokinase"
	Smoking               = "Smoking"
	Diabetes              = "Diabetes"
	Anaemia               = "Anaemia"
	Sex                   = "Sex"
	Event                 = "Event"
	Time                  = "Time"
)

// VariableNames lists the canonical variables in declaration order.
var VariableNames = []string{
	Age, BloodPressure, SerumCreatinine, EjectionFraction, SerumSodium,
	Platelets, CreatinePhosphokinase, Smoking, Diabetes, Anaemia, Sex,
	Event, Time,
}

// Patient is one row of the cohort.  Time is the follow-up duration, which
// is the time of death when Event is true and the time of last contact
// otherwise.
type Patient struct {
	Age                   float64
	BloodPressure         float64
	SerumCreatinine       float64
	EjectionFraction      float64
	SerumSodium           float64
	Platelets             float64
	CreatinePhosphokinase float64
	Smoking               bool
	Diabetes              bool
	Anaemia               bool
	Sex                   bool
	Event                 bool
	Time                  float64
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Value returns the named variable as a number, with Boolean values
// coded 0/1.
func (p *Patient) Value(name string) (float64, bool) {
	switch name {
	case Age:
		return p.Age, true
	case BloodPressure:
		return p.BloodPressure, true
	case SerumCreatinine:
		return p.SerumCreatinine, true
	case EjectionFraction:
		return p.EjectionFraction, true
	case SerumSodium:
		return p.SerumSodium, true
	case Platelets:
		return p.Platelets, true
	case CreatinePhosphokinase:
		return p.CreatinePhosphokinase, true
	case Smoking:
		return b2f(p.Smoking), true
	case Diabetes:
		return b2f(p.Diabetes), true
	case Anaemia:
		return b2f(p.Anaemia), true
	case Sex:
		return b2f(p.Sex), true
	case Event:
		return b2f(p.Event), true
	case Time:
		return p.Time, true
	}
	return 0, false
}

// set assigns a value parsed from the input file.
func (p *Patient) set(name string, x float64) error {

	flag := func(dst *bool) error {
		switch x {
		case 0:
			*dst = false
		case 1:
			*dst = true
		default:
			return fmt.Errorf("Boolean value %v is not 0 or 1", x)
		}
		return nil
	}

	switch name {
	case Age:
		p.Age = x
	case BloodPressure:
		p.BloodPressure = x
	case SerumCreatinine:
		p.SerumCreatinine = x
	case EjectionFraction:
		p.EjectionFraction = x
	case SerumSodium:
		p.SerumSodium = x
	case Platelets:
		p.Platelets = x
	case CreatinePhosphokinase:
		p.CreatinePhosphokinase = x
	case Smoking:
		return flag(&p.Smoking)
	case Diabetes:
		return flag(&p.Diabetes)
	case Anaemia:
		return flag(&p.Anaemia)
	case Sex:
		return flag(&p.Sex)
	case Event:
		return flag(&p.Event)
	case Time:
		if x < 0 {
			return fmt.Errorf("negative follow-up time %v", x)
		}
		p.Time = x
	default:
		return fmt.Errorf("unknown variable '%s'", name)
	}
	return nil
}

// Kind is the statistical type of a variable.  The independence tester
// and the estimators choose their residual and correlation routines
// from it.
type Kind int

const (
	Continuous Kind = iota
	Boolean
	Ordinal
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Boolean:
		return "boolean"
	case Ordinal:
		return "ordinal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts the name used in configuration files into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "continuous":
		return Continuous, nil
	case "boolean":
		return Boolean, nil
	case "ordinal":
		return Ordinal, nil
	}
	return 0, fmt.Errorf("unknown variable kind '%s'", s)
}

// Variable is a named variable with its statistical type.
type Variable struct {
	Name string
	Kind Kind
}

// DefaultVariables returns the variables of the cohort with their usual
// kinds.  Time is not included since it never enters the causal graph.
func DefaultVariables() []Variable {
	return []Variable{
		{Age, Continuous},
		{BloodPressure, Boolean},
		{SerumCreatinine, Continuous},
		{EjectionFraction, Continuous},
		{SerumSodium, Continuous},
		{Platelets, Continuous},
		{CreatinePhosphokinase, Continuous},
		{Smoking, Boolean},
		{Diabetes, Boolean},
		{Anaemia, Boolean},
		{Sex, Boolean},
		{Event, Boolean},
	}
}

// ToDataset returns the named variables of the patients as a column
// oriented dataset.  All variables are included if names is empty.
func ToDataset(recs []Patient, names ...string) (statmodel.Dataset, error) {

	if len(names) == 0 {
		names = VariableNames
	}

	data := make([][]statmodel.Dtype, len(names))
	for j, na := range names {
		x := make([]statmodel.Dtype, len(recs))
		for i := range recs {
			v, ok := recs[i].Value(na)
			if !ok {
				return statmodel.Dataset{}, fmt.Errorf("ToDataset: unknown variable '%s'", na)
			}
			x[i] = v
		}
		data[j] = x
	}

	return statmodel.NewDataset(data, append([]string(nil), names...)), nil
}
