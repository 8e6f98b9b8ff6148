// Package resolve binds ordered candidate attribute names and dotted attribute
// chains to live numeric accessors.
//
// Candidate lists are tried strictly in order and the first name whose value
// reads as a number wins; candidates are never ranked or scored. Chains walk
// every intermediate hop as a reference and stop at the first null or missing
// hop without trying alternate names.
//
// Nothing in this package panics or escalates: a failed lookup is an error
// wrapping objmodel.ErrNotFound, and a failed read or write through an
// Accessor reports false. Panics raised by host objects are recovered.
package resolve
