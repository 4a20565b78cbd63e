// Package types defines the configuration, domain types, and standard
// errors shared by the dataprep partitioner and its CLI.
//
// A run reads a category table and a label table, splits each class into
// train and validation subsets, and emits per-class directory trees plus
// index files. The types here describe those inputs and outputs.
package types
