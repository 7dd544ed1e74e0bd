/*
Package citest tests the conditional independence claims implied by a
causal graph.

For a claim X _||_ Y | Z, X and Y are each regressed on Z by ordinary
least squares with an intercept, and the association of the two residual
series is assessed.  How a variable enters these regressions depends on
its declared kind: continuous and Boolean variables are a single column
(Boolean coded 0/1), ordinal variables are expanded into indicators of
all levels but the lowest.

When both residual series are one dimensional the association is their
Pearson correlation, tested with the t distribution on n - 2 - k degrees
of freedom, where k is the number of columns of Z.  Otherwise the first
canonical correlation is reported and independence is tested with Wilks'
lambda, using Bartlett's chi-square approximation.

Residuals are cached by variable and conditioning set, since the claims
of a graph share many of them.

Evaluate tests every claim of a graph, Violations selects the rejected
claims, and Refine adds caller supplied edges to a graph and re-tests it.
Edge directions are always supplied by the caller; the tests only detect
association.
*/
package citest
