// Package sampleext is the sample extension: a power x heart rate data
// type, a simulated heart rate sensor, distance markers and beep demos.
package sampleext
