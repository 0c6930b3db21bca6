// Package pipeline runs one WebAssembly build to completion.
//
// A build walks a fixed sequence of stages: resolve the effective profile,
// run the pre-build hook against the prepared compiler command, compile,
// generate the JavaScript binding, recreate the output directory, optimize
// (Release and Profiling only) and finally hand the artifacts to the
// post-build hook. The first failing stage aborts the build.
package pipeline
