// Package visual classifies Power BI visual type identifiers as
// built-in or custom (third-party).
//
// Classification is a heuristic over naming conventions, not an
// authoritative registry: a custom visual published under a short,
// unqualified identifier will not be flagged. False negatives of that
// kind are expected and should be handled by review, not by widening
// the rules until built-ins are misflagged.
package visual
