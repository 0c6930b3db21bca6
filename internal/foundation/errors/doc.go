// Package errors provides the classified error primitives used across wasmrun.
//
// Every failure that can reach the command line is a ClassifiedError carrying a
// category (compile, binding, optimize, watch, ...), a severity and optional
// structured context. The CLI adapter maps categories to process exit codes.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryCompile, "compile failed").
//		WithContext("unit", unit.Name).
//		Fatal().
//		Build()
package errors
