// Package dnstypes provides the foundational types for the hostsim
// resolution simulator.
//
// This package contains enums, flag bits, outcome codes and small parsing
// helpers only. All other internal packages import dnstypes; dnstypes
// imports nothing internal. This keeps it the base layer with no circular
// dependencies.
//
// Key design constraints:
//   - Outcome codes are a closed enum (Code); callers never see internal
//     sentinels such as CodeCacheMiss as a final request result.
//   - Usage errors (bad enum values, malformed rule configuration) panic;
//     only simulated resolution outcomes are represented as error values.
package dnstypes
