// Package barberfish is the barberfish extension.
//
// It provides two data types: randonneur, the average speed including
// paused time with a configurable target range, and triple, a graphical
// field showing three configurable data fields side by side. Settings are
// kept in persistence.Preferences.
package barberfish
