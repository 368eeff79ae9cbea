// Package data reads evaluation datasets and writes run outputs.
//
// Datasets are CSV files with one example per row. Stage outputs are written
// next to each other in the run directory:
//
//	generations.csv   responses produced by the generator
//	evaluations.csv   judge scores and evaluation texts
//	analysis.json     aggregated statistics and shortcomings
//
// All file access goes through an afero.Fs so callers can swap in an
// in-memory filesystem.
package data
