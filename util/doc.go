// Package util holds small parsing helpers shared by config sections and
// the HTTP middleware.
package util
