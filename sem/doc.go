// Package sem estimates the strength of the edges of a causal graph.
//
// PartialCorrelations estimates each edge P -> C separately, as the
// correlation of P and C after both are residualized on the other
// parents of C.  Fit estimates all edges jointly as a recursive linear
// structural equation model, one least squares equation per non-root
// node, and tests the implied covariance matrix against the sample
// covariance.  OutcomeHazards replaces the estimates for edges into a
// survival outcome with proportional hazards coefficients, and Prune
// removes weak edges along with the nodes they leave without children.
//
// Continuous variables are expected to have been standardized with
// statmodel.Standardize, so that coefficients are comparable across
// edges and models.
package sem
