// Package dag provides a small, generic directed acyclic graph. The pipeline
// uses it to describe which stages depend on which, and answers questions
// like "does any later stage need this one" through ancestor and descendant
// queries instead of hard-coded stage arithmetic.
package dag
