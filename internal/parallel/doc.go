// Package parallel implements the bounded task runner used by every pipeline
// stage.
//
// It provides:
//   - Run: fan a function out over a slice of payloads under a worker cap,
//     with a per-task timeout, returning one Result per payload in input order
//   - Args: a tagged payload that is either a single value or a positional tuple
//   - Result and TaskError: a tagged success-or-failure outcome per task
//   - Encode and RunStrings: the prefixed-string form of failures, for callers
//     that pattern-match on an error prefix
//   - Progress: an observational hook advanced in completion order
//
// A task failure, whether a returned error, a panic or a missed deadline, is
// recorded in that task's slot and never aborts sibling tasks or the call.
//
// Timeouts are advisory for work that ignores its context: the runner cancels
// the task context and stops waiting, but only cooperative tasks actually stop.
package parallel
