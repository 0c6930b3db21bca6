// Package assets implements the default post-build step: it writes the generated
// script and binary, provides the entry document, and compiles stylesheets into
// the output directory.
package assets
