// Package pbix parses exported Power BI report definitions (PBIX
// files). A PBIX is a zip-style compound archive; the entries whose
// path contains "Layout" hold the JSON manifest describing pages and
// their visual containers.
//
// The layout manifest is an undocumented, versioned format owned by
// Power BI. Structural mismatches are reported as parse failures
// rather than coerced into a guessed shape.
package pbix
