// Package worker drains the classification queue: it claims due items,
// calls the classifier, applies results, and owns the retry policy.
package worker
