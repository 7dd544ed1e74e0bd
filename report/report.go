// Package report writes the artifacts of an analysis: graph diagrams in
// DOT format, survival curve plots, and a workbook of result tables.
// Nothing in this package affects the results themselves.
package report

import (
	"fmt"
	"math"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/Valkje/heart-failure/adjust"
	"github.com/Valkje/heart-failure/citest"
	"github.com/Valkje/heart-failure/cohort"
	"github.com/Valkje/heart-failure/dag"
	"github.com/Valkje/heart-failure/duration"
	"github.com/Valkje/heart-failure/propensity"
	"github.com/Valkje/heart-failure/sem"
	"github.com/Valkje/heart-failure/structure"
)

// Sheet names of the workbook.
const (
	SheetCutoff     = "Cutoff"
	SheetTests      = "Tests"
	SheetStrengths  = "Strengths"
	SheetAdjustment = "Adjustment"
	SheetBalance    = "Balance"
	SheetStructure  = "Structure"
)

// WriteDOT writes the graph in DOT format, with the highlighted nodes
// filled.
func WriteDOT(fname string, g dag.Graph, name string, highlight ...string) error {
	b, err := g.DOT(name, highlight...)
	if err != nil {
		return fmt.Errorf("report: %s: %w", fname, err)
	}
	return os.WriteFile(fname, b, 0o644)
}

// WriteCurves plots predicted survival curves.  The format is given by
// the file extension, e.g. .svg or .pdf.
func WriteCurves(fname, title string, curves []adjust.Curve) error {
	if err := adjust.Plot(curves, title, fname); err != nil {
		return fmt.Errorf("report: %s: %w", fname, err)
	}
	return nil
}

// WriteSurvfunc plots Kaplan-Meier curves, one per label.
func WriteSurvfunc(fname, title string, sf []*duration.SurvfuncRight, labels []string) error {
	sp := duration.NewSurvfuncRightPlotter().Title(title)
	for i, s := range sf {
		sp.Add(s, labels[i])
	}
	if err := sp.Plot().Save(fname); err != nil {
		return fmt.Errorf("report: %s: %w", fname, err)
	}
	return nil
}

// Workbook collects result tables, one per sheet.
type Workbook struct {
	f *excelize.File

	// Next row to write on each sheet
	row map[string]int
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{
		f:   excelize.NewFile(),
		row: make(map[string]int),
	}
}

// num returns a cell value for x, empty if x is not finite.
func num(x float64) interface{} {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ""
	}
	return x
}

// Table appends rows to a sheet, creating the sheet with the header
// row if it does not exist.
func (wb *Workbook) Table(sheet string, header []string, rows [][]interface{}) error {

	if _, ok := wb.row[sheet]; !ok {
		if _, err := wb.f.NewSheet(sheet); err != nil {
			return err
		}
		wb.row[sheet] = 1
		if err := wb.put(sheet, toRow(header)); err != nil {
			return err
		}
	}

	for _, r := range rows {
		if err := wb.put(sheet, r); err != nil {
			return err
		}
	}

	return nil
}

func toRow(s []string) []interface{} {
	r := make([]interface{}, len(s))
	for i, v := range s {
		r[i] = v
	}
	return r
}

func (wb *Workbook) put(sheet string, r []interface{}) error {
	ri := wb.row[sheet]
	for c, v := range r {
		cell, err := excelize.CoordinatesToCellName(c+1, ri)
		if err != nil {
			return err
		}
		if x, ok := v.(float64); ok {
			v = num(x)
		}
		if err := wb.f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	wb.row[sheet] = ri + 1
	return nil
}

// Cutoff writes the censoring count table, marking the selected cutoff.
func (wb *Workbook) Cutoff(table []cohort.Counts, cutoff int) error {
	var rows [][]interface{}
	for _, c := range table {
		var mark string
		if c.T == cutoff {
			mark = "*"
		}
		rows = append(rows, []interface{}{c.T, c.Censored, c.Deceased, c.AtRisk, mark})
	}
	return wb.Table(SheetCutoff, []string{"Time", "Censored", "Deceased", "AtRisk", "Cutoff"}, rows)
}

// Tests writes the independence test results of every refinement round.
func (wb *Workbook) Tests(rounds []*citest.Refinement, alpha float64) error {
	var rows [][]interface{}
	for k, rf := range rounds {
		for _, r := range rf.Results {
			rows = append(rows, []interface{}{
				k, r.Claim.String(), r.Method, r.Estimate, r.Statistic, r.DF, r.PValue, r.PValue < alpha,
			})
		}
	}
	return wb.Table(SheetTests, []string{"Round", "Claim", "Method", "Estimate", "Statistic", "DF", "PValue", "Violated"}, rows)
}

// Strengths writes edge strengths under a label, such as the estimation
// strategy.
func (wb *Workbook) Strengths(label string, strengths []sem.Strength) error {
	var rows [][]interface{}
	for _, s := range strengths {
		rows = append(rows, []interface{}{
			label, s.Parent, s.Child, s.Method, s.Estimate, s.StdErr, s.PValue, s.ResidVar,
		})
	}
	return wb.Table(SheetStrengths, []string{"Model", "Parent", "Child", "Method", "Estimate", "StdErr", "PValue", "ResidVar"}, rows)
}

// Estimates writes labeled exposure effect estimates, such as those of
// the unadjusted, back-door adjusted and propensity score models.
func (wb *Workbook) Estimates(labels []string, est []*adjust.Estimate) error {
	var rows [][]interface{}
	for i, e := range est {
		if e == nil {
			continue
		}
		rows = append(rows, []interface{}{
			labels[i], fmt.Sprint(e.Covariates), e.Coef, e.StdErr, e.PValue, e.HR, e.LCB, e.UCB, e.Concordance,
		})
	}
	return wb.Table(SheetAdjustment, []string{"Model", "Covariates", "Coef", "StdErr", "PValue", "HR", "LCB", "UCB", "Concordance"}, rows)
}

// Balance writes the standardized mean differences before and after
// matching.
func (wb *Workbook) Balance(bal []propensity.Balance) error {
	var rows [][]interface{}
	for _, b := range bal {
		rows = append(rows, []interface{}{
			b.Variable, b.Before, b.BeforeLCB, b.BeforeUCB, b.After, b.AfterLCB, b.AfterUCB,
		})
	}
	return wb.Table(SheetBalance, []string{"Variable", "Before", "BeforeLCB", "BeforeUCB", "After", "AfterLCB", "AfterUCB"}, rows)
}

// Structure writes the difference between a learned structure and the
// literature graph.
func (wb *Workbook) Structure(method string, df *structure.Diff) error {
	var rows [][]interface{}
	for _, s := range []struct {
		name  string
		edges []dag.Edge
	}{
		{"shared", df.Shared},
		{"missing", df.Missing},
		{"extra", df.Extra},
		{"reversed", df.Reversed},
		{"unoriented", df.Unoriented},
	} {
		for _, e := range s.edges {
			rows = append(rows, []interface{}{method, s.name, e.From, e.To})
		}
	}
	return wb.Table(SheetStructure, []string{"Method", "Status", "From", "To"}, rows)
}

// SaveAs writes the workbook.  The default empty sheet is removed if any
// table was written.
func (wb *Workbook) SaveAs(fname string) error {
	if len(wb.row) > 0 {
		if _, ok := wb.row["Sheet1"]; !ok {
			if err := wb.f.DeleteSheet("Sheet1"); err != nil {
				return err
			}
		}
	}
	if err := wb.f.SaveAs(fname); err != nil {
		return fmt.Errorf("report: %s: %w", fname, err)
	}
	return nil
}

// Close releases the workbook.
func (wb *Workbook) Close() error {
	return wb.f.Close()
}
