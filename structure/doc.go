// Package structure learns causal structure from discrete data, as a
// cross-check of a graph drawn from the literature.
//
// PC is constraint based: it removes edges between variables found
// conditionally independent by the G-squared test, then orients what the
// independences imply.  HillClimb is score based: it searches over DAGs
// by adding, deleting and reversing single edges to maximize BIC.
// Compare reports how a learned structure differs from a given graph.
// Continuous variables should first be coarsened with cohort.Discretize.
package structure
