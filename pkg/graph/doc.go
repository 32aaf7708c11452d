/*
Package graph implements the workflow engine: a small, synchronous executor
for directed graphs of named steps over a typed state record.

A graph is assembled with a fluent Builder and validated once by Build.
Every structural problem (unknown endpoints, routers whose labels have no
target, missing entry) is reported at build time as a *domain.BuildError.

Execution merges each step's delta into the running state with the
workflow's Reducer, then follows the step's edge or asks its Router for a
label. Errors and panics raised by a step never escape Execute: they are
recorded through the OnFailure recorder and in the run history, and the
graph decides where to go next.

A step may return Suspend to park the run until an external party calls
Resume. The engine imposes no iteration cap unless WithMaxSteps is given;
loops are bounded by counters the workflow threads through its state.
*/
package graph
