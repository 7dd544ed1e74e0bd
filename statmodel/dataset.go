package statmodel

import (
	"fmt"
)

// Dataset is a column-oriented collection of named numeric variables.
// All columns have the same length.  Methods that change the set of
// columns or rows return a new Dataset; the column slices themselves are
// shared unless stated otherwise.
type Dataset struct {
	names []string
	data  [][]Dtype
	pos   map[string]int
}

// NewDataset returns a Dataset holding the given columns.  It panics if
// the columns are ragged or the names do not match the columns, since
// both indicate a programming error in the caller.
func NewDataset(data [][]Dtype, names []string) Dataset {

	if len(data) != len(names) {
		msg := fmt.Sprintf("NewDataset: %d columns but %d names\n", len(data), len(names))
		panic(msg)
	}

	pos := make(map[string]int, len(names))
	for j, na := range names {
		if _, ok := pos[na]; ok {
			msg := fmt.Sprintf("NewDataset: duplicated variable name '%s'\n", na)
			panic(msg)
		}
		pos[na] = j
		if len(data[j]) != len(data[0]) {
			msg := fmt.Sprintf("NewDataset: variable '%s' has length %d, expected %d\n",
				na, len(data[j]), len(data[0]))
			panic(msg)
		}
	}

	return Dataset{
		names: names,
		data:  data,
		pos:   pos,
	}
}

// Names returns the variable names, in column order.
func (ds Dataset) Names() []string {
	return ds.names
}

// Data returns the data columns, in the same order as Names.
func (ds Dataset) Data() [][]Dtype {
	return ds.data
}

// NumObs returns the number of rows.
func (ds Dataset) NumObs() int {
	if len(ds.data) == 0 {
		return 0
	}
	return len(ds.data[0])
}

// Pos returns the column position of a variable, or -1 if it is not present.
func (ds Dataset) Pos(name string) int {
	if j, ok := ds.pos[name]; ok {
		return j
	}
	return -1
}

// Has reports whether the dataset contains the named variable.
func (ds Dataset) Has(name string) bool {
	_, ok := ds.pos[name]
	return ok
}

// Get returns the column for the named variable.
func (ds Dataset) Get(name string) ([]Dtype, bool) {
	j, ok := ds.pos[name]
	if !ok {
		return nil, false
	}
	return ds.data[j], true
}

// MustGet returns the column for the named variable, panicking if it
// is not present.
func (ds Dataset) MustGet(name string) []Dtype {
	x, ok := ds.Get(name)
	if !ok {
		msg := fmt.Sprintf("Variable '%s' not found in dataset\n", name)
		panic(msg)
	}
	return x
}

// Select returns a dataset containing only the named variables, in the
// given order.
func (ds Dataset) Select(names ...string) (Dataset, error) {
	var data [][]Dtype
	for _, na := range names {
		x, ok := ds.Get(na)
		if !ok {
			return Dataset{}, fmt.Errorf("variable '%s' not found in dataset", na)
		}
		data = append(data, x)
	}
	return NewDataset(data, append([]string(nil), names...)), nil
}

// With returns a dataset with the given column appended, or replacing
// the existing column of the same name.
func (ds Dataset) With(name string, x []Dtype) Dataset {

	if n := ds.NumObs(); len(ds.data) > 0 && len(x) != n {
		msg := fmt.Sprintf("With: variable '%s' has length %d, expected %d\n", name, len(x), n)
		panic(msg)
	}

	names := append([]string(nil), ds.names...)
	data := append([][]Dtype(nil), ds.data...)
	if j, ok := ds.pos[name]; ok {
		data[j] = x
	} else {
		names = append(names, name)
		data = append(data, x)
	}

	return NewDataset(data, names)
}

// Rows returns a copy of the dataset restricted to the given row indices.
func (ds Dataset) Rows(ix []int) Dataset {
	data := make([][]Dtype, len(ds.data))
	for j, x := range ds.data {
		y := make([]Dtype, len(ix))
		for i, k := range ix {
			y[i] = x[k]
		}
		data[j] = y
	}
	return NewDataset(data, append([]string(nil), ds.names...))
}

// Copy returns a deep copy of the dataset.  Models that reorder their
// data (e.g. proportional hazards regression with strata) should be given
// a copy.
func (ds Dataset) Copy() Dataset {
	data := make([][]Dtype, len(ds.data))
	for j, x := range ds.data {
		data[j] = append([]Dtype(nil), x...)
	}
	return NewDataset(data, append([]string(nil), ds.names...))
}
