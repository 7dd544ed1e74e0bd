package cohort

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// ErrMissingColumn is returned when the header lacks a required variable.
var ErrMissingColumn = errors.New("required column missing")

// ParseError describes a failure to read or convert one field of the
// input file.  Line is 1-based and counts the header row.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("cohort: column %q: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("cohort: line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// aliases maps normalized raw column names to canonical names.  The raw
// data misspells platelets, both spellings are accepted.
var aliases = map[string]string{
	"age":                     Age,
	"highbloodpressure":       BloodPressure,
	"bloodpressure":           BloodPressure,
	"serumcreatinine":         SerumCreatinine,
	"creatinine":              SerumCreatinine,
	"ejectionfraction":        EjectionFraction,
	"serumsodium":             SerumSodium,
	"sodium":                  SerumSodium,
	"platelets":               Platelets,
	"pletelets":               Platelets,
	"platlets":                Platelets,
	"creatininephosphokinase": CreatinePhosphokinase,
	"creatinephosphokinase":   CreatinePhosphokinase,
	"cpk":                     CreatinePhosphokinase,
	"smoking":                 Smoking,
	"diabetes":                Diabetes,
	"anaemia":                 Anaemia,
	"anemia":                  Anaemia,
	"sex":                     Sex,
	"deathevent":              Event,
	"event":                   Event,
	"time":                    Time,
}

// normalize lower-cases a column name and removes everything that is not
// a letter or digit.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// CanonicalName returns the canonical variable name for a raw column
// name, and false if the column is not recognized.
func CanonicalName(raw string) (string, bool) {
	na, ok := aliases[normalize(raw)]
	return na, ok
}

// Load reads patient records from CSV data with one header row.  Columns
// that are not recognized are ignored.  Every canonical variable must be
// present, and any value that cannot be converted is a fatal error.
func Load(r io.Reader) ([]Patient, error) {

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, &ParseError{Line: 1, Err: err}
	}

	// Positions of the canonical variables
	pos := make(map[string]int)
	for k, v := range head {
		na, ok := CanonicalName(v)
		if !ok {
			continue
		}
		if _, ok := pos[na]; ok {
			return nil, &ParseError{Line: 1, Column: v, Err: fmt.Errorf("duplicates variable %s", na)}
		}
		pos[na] = k
	}
	for _, na := range VariableNames {
		if _, ok := pos[na]; !ok {
			return nil, &ParseError{Column: na, Err: ErrMissingColumn}
		}
	}

	var recs []Patient
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}

		var p Patient
		for _, na := range VariableNames {
			k := pos[na]
			x, err := strconv.ParseFloat(strings.TrimSpace(row[k]), 64)
			if err != nil {
				return nil, &ParseError{Line: line, Column: head[k], Err: err}
			}
			if err := p.set(na, x); err != nil {
				return nil, &ParseError{Line: line, Column: head[k], Err: err}
			}
		}
		recs = append(recs, p)
	}

	if len(recs) == 0 {
		return nil, &ParseError{Line: line, Err: errors.New("no data rows")}
	}

	return recs, nil
}

// LoadFile reads patient records from the named CSV file.
func LoadFile(fname string) ([]Patient, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	return Load(fid)
}
