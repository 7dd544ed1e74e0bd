/*
Package cohort loads and prepares the heart failure patient records.

Records are read from a CSV file with one header row.  Column names are
normalized through an alias table, so that the raw names used by the
published data (e.g. "serum_creatinine", "DEATH_EVENT") map onto the
canonical variable names used throughout this module.

Follow-up in the raw data ends for some patients in administrative
batches.  CensoringTable counts, for every candidate cutoff time, the
patients censored before the cutoff, the patients who died before the
cutoff, and those still at risk.  SelectCutoff picks the cutoff just
before the first jump in the censored count, and ApplyCutoff drops the
patients censored before that time.

The cleaned cohort can be stored in a compressed checkpoint, converted
to a statmodel.Dataset, or coarsened into ordinal buckets for discrete
structure learning.
*/
package cohort
