// Package dispatch maps a logical iteration space of rank 1 to 4 onto one of
// several parallel execution strategies (loop patterns) running on a pluggable
// execution space. Physics kernels are written once against the index space;
// the pattern and space are configuration choices.
package dispatch
