package cohort

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"
)

// checkpoint is the serialized form of a prepared cohort.
type checkpoint struct {
	Cutoff   int
	Patients []Patient
}

// WriteCheckpoint writes the cutoff-filtered cohort in a compressed
// binary form that ReadCheckpoint can restore.  The format is private to
// this package.
func WriteCheckpoint(w io.Writer, recs []Patient, cutoff int) error {

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(&checkpoint{Cutoff: cutoff, Patients: recs}); err != nil {
		return fmt.Errorf("cohort: encoding checkpoint: %w", err)
	}

	if _, err := w.Write(snappy.Encode(nil, buf.Bytes())); err != nil {
		return fmt.Errorf("cohort: writing checkpoint: %w", err)
	}

	return nil
}

// ReadCheckpoint restores a cohort written by WriteCheckpoint, returning
// the patients and the cutoff that was applied to them.
func ReadCheckpoint(r io.Reader) ([]Patient, int, error) {

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("cohort: reading checkpoint: %w", err)
	}

	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, 0, fmt.Errorf("cohort: decompressing checkpoint: %w", err)
	}

	var cp checkpoint
	dec := gob.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&cp); err != nil {
		return nil, 0, fmt.Errorf("cohort: decoding checkpoint: %w", err)
	}

	return cp.Patients, cp.Cutoff, nil
}

// SaveCheckpoint writes a checkpoint to the named file.
func SaveCheckpoint(fname string, recs []Patient, cutoff int) error {

	fid, err := os.Create(fname)
	if err != nil {
		return err
	}

	if err := WriteCheckpoint(fid, recs, cutoff); err != nil {
		fid.Close()
		return err
	}

	return fid.Close()
}

// LoadCheckpoint reads a checkpoint from the named file.
func LoadCheckpoint(fname string) ([]Patient, int, error) {

	fid, err := os.Open(fname)
	if err != nil {
		return nil, 0, err
	}
	defer fid.Close()

	return ReadCheckpoint(fid)
}
