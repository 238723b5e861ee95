package sampleext

import "github.com/jpweytjens/karoo-ext/pkg/model"

// BeepPattern returns the demo pattern for a hardware generation. The K2
// beeper is limited in frequency and duration, so it gets a pattern close
// to the system sounds; the Karoo plays a short melody.
func BeepPattern(hw model.HardwareType) (model.PlayBeepPattern, bool) {
	switch hw {
	case model.HardwareK2:
		return model.PlayBeepPattern{Tones: []model.Tone{
			model.Beep(5000, 200),
			model.Rest(50),
			model.Beep(5000, 200),
			model.Rest(50),
			model.Beep(5000, 250),
			model.Rest(100),
			model.Beep(4000, 350),
		}}, true
	case model.HardwareKaroo:
		const tempo = 108
		const whole = 60000 * 4 / tempo
		notes := []struct{ freq, div int }{
			{466, 8}, {466, 8}, {466, 8}, {698, 2}, {1047, 2},
			{932, 8}, {880, 8}, {784, 8}, {1397, 2}, {1047, 4},
			{932, 8}, {880, 8}, {784, 8}, {1397, 2}, {1047, 4},
			{932, 8}, {880, 8}, {932, 8}, {784, 2},
		}
		tones := make([]model.Tone, len(notes))
		for i, n := range notes {
			tones[i] = model.Beep(n.freq, whole/n.div)
		}
		return model.PlayBeepPattern{Tones: tones}, true
	default:
		return model.PlayBeepPattern{}, false
	}
}
