// Package regression fits ordinary least squares models and scores them.
//
// Fit centers the inputs and solves the least-squares problem through a thin
// SVD, taking the minimum-norm solution when columns are collinear (for
// example a full set of one-hot indicators next to the intercept). The
// intercept is recovered from the column means afterwards.
//
// Split partitions row indices with a seeded PRNG so a given seed always
// yields the same train/test sets.
package regression
