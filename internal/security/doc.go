// Package security defines the SecurityConfig model consumed by the sandboxed
// process server.
//
// A configuration exists in two forms:
//
//   - Document: a loosely-typed map keyed by SecurityConfig field name. This is
//     what the settings generator produces and what the validation engine
//     inspects. Values of the wrong type survive in a Document so that
//     validation can report them.
//   - Config: the strongly typed struct handed to the process server. It is
//     decoded from a Document and fails on type mismatches.
//
// Nested groups (defaultResourceLimits, namespaces) are nested maps inside a
// Document and are addressed with dot-separated field paths such as
// "defaultResourceLimits.maxCpuPercent".
package security
