// Package types contains shared types used across the x3f acceptance harness
package types

import (
	"fmt"
	"strings"
	"time"
)

// Format is the conversion requested from the executable under test.
// The plain output formats map onto a single switch, the remaining values are
// historical variants of TIFF output.
type Format string

const (
	FormatDNG              Format = "DNG"
	FormatTIFF             Format = "TIFF"
	FormatJPG              Format = "JPG"
	FormatPPM              Format = "PPM"
	FormatUnprocessed      Format = "UNPROCESSED"
	FormatQTop             Format = "QTOP"
	FormatColorSRGB        Format = "COLOR_SRGB"
	FormatColorAdobeRGB    Format = "COLOR_ADOBE_RGB"
	FormatColorProPhotoRGB Format = "COLOR_PROPHOTO_RGB"
	FormatCrop             Format = "CROP"
)

// String implements the Stringer interface for Format
func (f Format) String() string {
	return string(f)
}

// ValidFormats returns every format the harness knows how to request.
func ValidFormats() []Format {
	return []Format{
		FormatDNG,
		FormatTIFF,
		FormatJPG,
		FormatPPM,
		FormatUnprocessed,
		FormatQTop,
		FormatColorSRGB,
		FormatColorAdobeRGB,
		FormatColorProPhotoRGB,
		FormatCrop,
	}
}

// IsValid reports whether f is one of ValidFormats.
func (f Format) IsValid() bool {
	for _, v := range ValidFormats() {
		if f == v {
			return true
		}
	}
	return false
}

// ParseFormat parses a format name as written in scenario text. Matching is
// case-insensitive and accepts '-' in place of '_'.
func ParseFormat(name string) (Format, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	f := Format(normalized)
	if !f.IsValid() {
		return "", fmt.Errorf("unknown output format %q", name)
	}
	return f, nil
}

// ColorProfile is the value passed to the executable's -color switch.
type ColorProfile string

const (
	ColorNone        ColorProfile = "none"
	ColorSRGB        ColorProfile = "sRGB"
	ColorAdobeRGB    ColorProfile = "AdobeRGB"
	ColorProPhotoRGB ColorProfile = "ProPhotoRGB"
)

func (c ColorProfile) String() string {
	return string(c)
}

// ValidColorProfiles returns the colour encodings understood by the executable.
func ValidColorProfiles() []ColorProfile {
	return []ColorProfile{ColorNone, ColorSRGB, ColorAdobeRGB, ColorProPhotoRGB}
}

// ParseColorProfile parses a colour profile name case-insensitively. An empty
// name yields ColorNone.
func ParseColorProfile(name string) (ColorProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ColorNone, nil
	}
	for _, c := range ValidColorProfiles() {
		if strings.EqualFold(name, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown color profile %q", name)
}

// Scenario describes one conversion test case. It is built from a feature file
// or a catalog entry and is not modified once built.
type Scenario struct {
	ID           string
	Suite        string
	Input        string        // Path of the raw image handed to the executable
	Output       string        // Path the executable is expected to write
	Format       Format        // Requested conversion
	Denoise      bool          // Leave the executable's denoising enabled
	Color        ColorProfile  // Requested colour profile, ColorNone when empty
	Crop         bool          // Leave the executable's cropping enabled
	Compress     bool          // Request ZIP compression (DNG and TIFF)
	ExpectedHash string        // Hex digest of the expected output
	Timeout      time.Duration // Zero means the runner default
}

// Name returns a human readable label for the scenario.
func (s Scenario) Name() string {
	if s.ID != "" {
		return s.ID
	}
	return fmt.Sprintf("%s->%s", s.Input, s.Format)
}

// ColorOrDefault returns the requested colour profile, or ColorNone.
func (s Scenario) ColorOrDefault() ColorProfile {
	if s.Color == "" {
		return ColorNone
	}
	return s.Color
}
