// Package hooks defines the overridable extension points of the build and dev loop.
//
// A Set is parameterized over the embedding application's argument types, so a hook
// always receives the concrete type the application declared. Resolve fills every
// hook left nil with its default; an override replaces the default entirely.
package hooks
