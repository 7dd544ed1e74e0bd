// Package config reads the analysis configuration.
//
// The analysis is described by a YAML file naming the data, the
// variables and their kinds, the literature graph, the refinement rounds
// and the settings of every stage.  The data path, output directory and
// random seed may be overridden by the environment variables
// HFCAUSAL_DATA, HFCAUSAL_OUTDIR and HFCAUSAL_SEED, which are also read
// from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/structure"
)

// Environment variables that override the configuration file.
const (
	EnvData   = "HFCAUSAL_DATA"
	EnvOutDir = "HFCAUSAL_OUTDIR"
	EnvSeed   = "HFCAUSAL_SEED"
)

var validate = validator.New()

// Variable declares a variable of the causal graph.
type Variable struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"required,oneof=continuous boolean ordinal"`
}

// Round is one round of graph refinement, the edges added from the
// literature in response to the violations of the previous round.
type Round struct {
	Name  string     `yaml:"name"`
	Edges []dag.Edge `yaml:"edges" validate:"required,min=1,dive"`
}

// Cutoff configures the censoring cutoff.
type Cutoff struct {
	cohort.CutoffPolicy `yaml:",inline"`

	// The range of candidate cutoff times, in days.
	Min int `yaml:"min" validate:"gte=0"`
	Max int `yaml:"max" validate:"gtfield=Min"`
}

// Propensity configures the propensity score estimators.
type Propensity struct {

	// Covariates of the nuisance model.  If empty the adjustment set
	// of the exposure is used.
	Covariates []string `yaml:"covariates"`

	// Threshold dichotomizes a continuous exposure for matching,
	// the median if not given.
	Threshold *float64 `yaml:"threshold"`

	Caliper   float64 `yaml:"caliper" validate:"gte=0"`
	MaxWeight float64 `yaml:"max_weight" validate:"gte=0"`
}

// Structure configures the structure learning cross-check.
type Structure struct {
	structure.Constraints `yaml:",inline"`

	Enabled bool `yaml:"enabled"`

	// Bins is the number of quantile buckets for continuous variables.
	Bins int `yaml:"bins" validate:"gte=2"`

	// CaseControl is the number of patients without an event sampled
	// per patient with one.  Zero uses every patient.
	CaseControl float64 `yaml:"case_control" validate:"gte=0"`

	Alpha       float64 `yaml:"alpha" validate:"gt=0,lt=1"`
	MaxCondSize int     `yaml:"max_cond_size" validate:"gte=0"`
}

// Config is the analysis configuration.
type Config struct {
	Data   string `yaml:"data" validate:"required"`
	OutDir string `yaml:"outdir" validate:"required"`
	Seed   uint64 `yaml:"seed"`

	Variables []Variable `yaml:"variables" validate:"required,min=2,dive"`
	Edges     []dag.Edge `yaml:"edges" validate:"dive"`
	Rounds    []Round    `yaml:"rounds" validate:"dive"`

	Exposure string `yaml:"exposure" validate:"required"`
	Outcome  string `yaml:"outcome" validate:"required"`
	Time     string `yaml:"time" validate:"required"`

	Alpha     float64 `yaml:"alpha" validate:"gt=0,lt=1"`
	CacheSize int     `yaml:"cache_size" validate:"gte=1"`

	Cutoff     Cutoff     `yaml:"cutoff"`
	Propensity Propensity `yaml:"propensity"`
	Structure  Structure  `yaml:"structure"`
}

// Default returns a configuration with every setting except the
// variables, edges and exposure filled in.
func Default() *Config {
	return &Config{
		OutDir:    "out",
		Seed:      1,
		Outcome:   cohort.Event,
		Time:      cohort.Time,
		Alpha:     0.05,
		CacheSize: 256,
		Cutoff: Cutoff{
			CutoffPolicy: cohort.DefaultCutoffPolicy(),
			Max:          200,
		},
		Propensity: Propensity{
			MaxWeight: 10,
		},
		Structure: Structure{
			Bins:        3,
			Alpha:       0.05,
			MaxCondSize: 3,
		},
	}
}

// Parse reads a YAML configuration over the defaults.  It does not
// validate the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Load reads the configuration file, applies the environment overrides
// from the process environment and the given .env files, and validates
// the result.  Missing .env files are ignored.
func Load(fname string, envfiles ...string) (*Config, error) {

	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	c, err := Parse(b)
	if err != nil {
		return nil, err
	}

	env, err := Env(envfiles...)
	if err != nil {
		return nil, err
	}
	if err := c.Override(env); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Env returns the override variables set in the .env files or the
// process environment.  The process environment takes precedence, and
// later files take precedence over earlier ones.
func Env(envfiles ...string) (map[string]string, error) {

	env := make(map[string]string)
	for _, fn := range envfiles {
		m, err := godotenv.Read(fn)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("config: %s: %w", fn, err)
		}
		for k, v := range m {
			env[k] = v
		}
	}

	for _, k := range []string{EnvData, EnvOutDir, EnvSeed} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}

	return env, nil
}

// Override applies the environment overrides.
func (c *Config) Override(env map[string]string) error {

	if v, ok := env[EnvData]; ok {
		c.Data = v
	}
	if v, ok := env[EnvOutDir]; ok {
		c.OutDir = v
	}
	if v, ok := env[EnvSeed]; ok {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvSeed, err)
		}
		c.Seed = seed
	}

	return nil
}

// Validate checks the field constraints and that the variables, exposure
// and graph are consistent.
func (c *Config) Validate() error {

	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	seen := make(map[string]bool)
	for _, v := range c.Variables {
		if seen[v.Name] {
			return fmt.Errorf("config: variable %s declared twice", v.Name)
		}
		if v.Name == c.Time {
			return fmt.Errorf("config: the time variable %s cannot be a node of the graph", v.Name)
		}
		seen[v.Name] = true
	}

	for _, na := range []string{c.Exposure, c.Outcome} {
		if !seen[na] {
			return fmt.Errorf("config: %s is not a declared variable", na)
		}
	}
	if c.Exposure == c.Outcome {
		return fmt.Errorf("config: exposure and outcome are both %s", c.Exposure)
	}
	for _, na := range c.Propensity.Covariates {
		if !seen[na] {
			return fmt.Errorf("config: propensity covariate %s is not a declared variable", na)
		}
	}

	g, err := c.Graph()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i, r := range c.Rounds {
		if g, err = g.WithEdges(r.Edges...); err != nil {
			return fmt.Errorf("config: round %d: %w", i+1, err)
		}
	}

	return nil
}

// CohortVariables returns the declared variables with their kinds.
func (c *Config) CohortVariables() ([]cohort.Variable, error) {
	var vars []cohort.Variable
	for _, v := range c.Variables {
		k, err := cohort.ParseKind(v.Kind)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", v.Name, err)
		}
		vars = append(vars, cohort.Variable{Name: v.Name, Kind: k})
	}
	return vars, nil
}

// Names returns the declared variable names.
func (c *Config) Names() []string {
	var na []string
	for _, v := range c.Variables {
		na = append(na, v.Name)
	}
	return na
}

// Graph returns the initial literature graph.
func (c *Config) Graph() (dag.Graph, error) {
	return dag.Build(c.Names(), c.Edges)
}

// RoundEdges returns the edges of each refinement round.
func (c *Config) RoundEdges() [][]dag.Edge {
	var r [][]dag.Edge
	for _, rd := range c.Rounds {
		r = append(r, rd.Edges)
	}
	return r
}

func formatValidationError(err error) error {

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}

	e := verrs[0]
	switch e.Tag() {
	case "required":
		return fmt.Errorf("config: %s is required", e.Namespace())
	case "oneof":
		return fmt.Errorf("config: %s must be one of %s, got '%v'", e.Namespace(), e.Param(), e.Value())
	default:
		return fmt.Errorf("config: %s fails %s=%s, got %v", e.Namespace(), e.Tag(), e.Param(), e.Value())
	}
}
