// Package devloop supervises the serve command: the initial build, the dev server or
// backend process, and the watch-triggered rebuilds.
package devloop
