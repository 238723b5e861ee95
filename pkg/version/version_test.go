package version

import (
	"errors"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Version
	}{
		{"1.0", Version{1, 0, 0}},
		{"1.1", Version{1, 1, 0}},
		{"1.0.0", Version{1, 0, 0}},
		{"2.3.4", Version{2, 3, 4}},
		{"10.23", Version{10, 23, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, v, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"abc",
		"1.0.0.0",
		"1.x",
		"-1.0",
		"1..0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestVersion_String(t *testing.T) {
	v, err := Parse("1.0")
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "1.0.0" {
		t.Errorf("String() = %q, want %q", v.String(), "1.0.0")
	}
}

func TestCompatible(t *testing.T) {
	v1, _ := Parse("1.0")
	v2, _ := Parse("1.4.2")
	v3, _ := Parse("2.0")

	if !v1.Compatible(v2) || !v2.Compatible(v1) {
		t.Error("1.0 and 1.4.2 should be compatible")
	}
	if v1.Compatible(v3) || v3.Compatible(v1) {
		t.Error("1.0 and 2.0 should not be compatible")
	}
}

func TestCheckCompatible(t *testing.T) {
	if err := CheckCompatible("1.7"); err != nil {
		t.Errorf("CheckCompatible(1.7) = %v, want nil", err)
	}
	if err := CheckCompatible("2.0.0"); !errors.Is(err, ErrIncompatible) {
		t.Errorf("CheckCompatible(2.0.0) = %v, want ErrIncompatible", err)
	}
	if err := CheckCompatible("garbage"); !errors.Is(err, ErrIncompatible) {
		t.Errorf("CheckCompatible(garbage) = %v, want ErrIncompatible", err)
	}
}

func TestProtocol(t *testing.T) {
	if got := Protocol(1); got != "karoo-ext/1" {
		t.Errorf("Protocol(1) = %q, want %q", got, "karoo-ext/1")
	}
}

func TestMajorFromProtocol(t *testing.T) {
	tests := []struct {
		input   string
		want    uint16
		wantErr bool
	}{
		{"karoo-ext/1", 1, false},
		{"karoo-ext/2", 2, false},
		{"http/1.1", 0, true},
		{"karoo-ext/", 0, true},
		{"", 0, true},
		{"karoo-ext/abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := MajorFromProtocol(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("MajorFromProtocol(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("MajorFromProtocol(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestSupportedProtocols(t *testing.T) {
	protos := SupportedProtocols()
	if len(protos) != 1 || protos[0] != "karoo-ext/1" {
		t.Errorf("SupportedProtocols() = %v, want [karoo-ext/1]", protos)
	}
}

func TestCurrent(t *testing.T) {
	v := Current()
	if v.Major != 1 || v.Minor != 0 || v.Patch != 0 {
		t.Errorf("Current() = %s, want 1.0.0", v)
	}
}
