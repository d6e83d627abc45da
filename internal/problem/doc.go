// Package problem loads root-finding problems from YAML files.
//
// A problem names the residual inputs in order, their values (the entry at
// implicit_input is the initial guess), the rootfinder plugin and its
// options, and a residual written in CUE:
//
//	name: square
//	solver: newton
//	options:
//	  abstol: 1e-12
//	inputs:
//	  - {name: z, value: [2.1]}
//	  - {name: p, value: [4]}
//	residual: |
//	  r: [z[0]*z[0] - p[0]]
//
// Each input is visible to the CUE source as a list of numbers under its
// name; the residual is the list bound to the field r.
package problem
