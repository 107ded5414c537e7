// Package scoring holds the numeric helpers shared by every indicator:
// similarities, percentiles and the zero-on-undefined division policy.
package scoring
