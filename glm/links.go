package glm

import (
	"fmt"
	"math"
)

// VecFunc is a function with two float64 array arguments.
type VecFunc func([]float64, []float64)

// elementwise lifts a scalar function to a VecFunc writing f(x[i]) into y[i].
func elementwise(f func(float64) float64) VecFunc {
	return func(x, y []float64) {
		for i, v := range x {
			y[i] = f(v)
		}
	}
}

// Link specifies a GLM link function.
type Link struct {
	Name string

	TypeCode LinkType

	// Link maps the mean value to the linear predictor.
	Link VecFunc

	// InvLink maps the linear predictor to the mean value.
	InvLink VecFunc

	// Deriv and Deriv2 are the first two derivatives of the link
	// function with respect to the mean.
	Deriv  VecFunc
	Deriv2 VecFunc
}

// LinkType is used to specify a GLM link function.
type LinkType uint8

// IdentityLink and LogitLink are the canonical links of the Gaussian and
// binomial families.
const (
	IdentityLink LinkType = iota
	LogitLink
)

var links = map[LinkType]*Link{
	IdentityLink: {
		Name:     "Identity",
		TypeCode: IdentityLink,
		Link:     elementwise(func(x float64) float64 { return x }),
		InvLink:  elementwise(func(x float64) float64 { return x }),
		Deriv:    elementwise(func(float64) float64 { return 1 }),
		Deriv2:   elementwise(func(float64) float64 { return 0 }),
	},
	LogitLink: {
		Name:     "Logit",
		TypeCode: LogitLink,
		Link:     elementwise(Logit),
		InvLink:  elementwise(Expit),
		Deriv: elementwise(func(p float64) float64 {
			return 1 / (p * (1 - p))
		}),
		Deriv2: elementwise(func(p float64) float64 {
			v := p * (1 - p)
			return (2*p - 1) / (v * v)
		}),
	},
}

// NewLink returns the link function object corresponding to the given type.
func NewLink(link LinkType) *Link {
	lk, ok := links[link]
	if !ok {
		msg := fmt.Sprintf("Link unknown: %v\n", link)
		panic(msg)
	}
	return lk
}

// Expit is the inverse of the logit function.
func Expit(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Logit returns log(p / (1 - p)).
func Logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
