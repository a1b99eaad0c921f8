// Package util holds small helpers shared by the storage, server and
// handler packages.
package util
