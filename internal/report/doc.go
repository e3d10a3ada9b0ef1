// Package report provides result and summary output functionality.
//
// This package contains the CSV row sink that streams per-report rows
// during a run, plus writers for different end-of-run summary formats:
//   - SummaryWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown output for documentation and sharing
//   - JSONWriter: Structured JSON output for tool integration
//
// Design decision: We separate output writing from result data
// structures (which are in the model package) to follow the single
// responsibility principle. This allows adding new output formats
// without modifying the core data structures.
//
// Summary writers implement the Writer interface, allowing them to be
// used interchangeably and composed for multi-format output.
package report
