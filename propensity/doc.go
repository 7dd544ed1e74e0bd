/*
Package propensity estimates the effect of an exposure on survival using a
model for the exposure given its confounders.

Fit estimates the propensity score, which is the predicted probability of
the observed value for a Boolean exposure, and the normal density of the
observed value at the fitted mean for a continuous exposure.  The score is
then used in one of three independent ways:

	Covariate  the outcome model includes the score as a covariate
	Match      treated and control patients are paired on the logit of the score
	Weighted   the outcome model is refit with stabilized inverse weights

Each returns the estimated log hazard ratio of the exposure, so that the
three can be compared with each other and with back-door adjustment.
*/
package propensity
