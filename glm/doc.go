/*
Package glm fits generalized linear models to in-memory data.

The data are supplied as a statmodel.Dataset.  Models are fit either by
iteratively reweighted least squares (the default) or by gradient
optimization of the log-likelihood.  Only the Gaussian and binomial
families are provided, which covers the linear structural equations and
the propensity score models used elsewhere in this module.
*/
package glm
