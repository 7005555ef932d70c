// Package mapdatatests contains the map data gateway contract tests themselves and their
// supporting API.
//
// Test harness infrastructure that is not specific to the map data domain, such as running
// tests, filtering them and collecting results, is in the lower-level framework package.
package mapdatatests
