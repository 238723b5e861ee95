// Package persistence stores extension preferences as a JSON file.
//
// Preferences are a flat key-value map kept in memory and written to disk
// on Save. A missing file loads as empty preferences, so a fresh install
// needs no setup.
package persistence
