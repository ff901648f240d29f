// Package conversion turns a conversion scenario into the argument vector the
// x3f_extract executable expects.
//
// The executable parses its switches left to right and lets the last one win,
// so the order produced here is part of the contract:
//
//	<format> -color <profile> [<modifier>] [-no-denoise] [-no-crop] [-compress] [-o <dir>] <input>
package conversion

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kalpanika/x3f-acceptor/types"
)

// Switches understood by the executable
const (
	FlagPrefix      = "-"
	ColorFlag       = "-color"
	UnprocessedFlag = "-unprocessed"
	QTopFlag        = "-qtop"
	NoDenoiseFlag   = "-no-denoise"
	NoCropFlag      = "-no-crop"
	CompressFlag    = "-compress"
	OutDirFlag      = "-o"
)

// formatSpec is one row of the mapping table.
type formatSpec struct {
	switches  []string
	color     types.ColorProfile // forced colour profile, empty to use the scenario's
	modifier  string             // colour-encoding override, must follow -color
	forceCrop bool
	ext       string
}

var formatTable = map[types.Format]formatSpec{
	types.FormatDNG:              {switches: []string{"-dng"}, ext: ".dng"},
	types.FormatTIFF:             {switches: []string{"-tiff"}, ext: ".tif"},
	types.FormatJPG:              {switches: []string{"-jpg"}, ext: ".jpg"},
	types.FormatPPM:              {switches: []string{"-ppm"}, ext: ".ppm"},
	types.FormatUnprocessed:      {switches: []string{"-tiff"}, modifier: UnprocessedFlag, ext: ".tif"},
	types.FormatQTop:             {switches: []string{"-tiff"}, modifier: QTopFlag, ext: ".tif"},
	types.FormatColorSRGB:        {switches: []string{"-tiff"}, color: types.ColorSRGB, ext: ".tif"},
	types.FormatColorAdobeRGB:    {switches: []string{"-tiff"}, color: types.ColorAdobeRGB, ext: ".tif"},
	types.FormatColorProPhotoRGB: {switches: []string{"-tiff"}, color: types.ColorProPhotoRGB, ext: ".tif"},
	types.FormatCrop:             {switches: []string{"-tiff"}, forceCrop: true, ext: ".tif"},
}

// lookup returns the table row for f. Formats missing from the table fall back
// to a switch derived from the lower-cased name.
func lookup(f types.Format) (formatSpec, error) {
	if row, ok := formatTable[f]; ok {
		return row, nil
	}
	name := strings.ToLower(strings.TrimSpace(string(f)))
	if name == "" {
		return formatSpec{}, fmt.Errorf("format cannot be empty")
	}
	return formatSpec{switches: []string{FlagPrefix + name}, ext: "." + name}, nil
}

// BuildArgs returns the ordered argument vector for s.
func BuildArgs(s types.Scenario) ([]string, error) {
	if s.Input == "" {
		return nil, fmt.Errorf("scenario input cannot be empty")
	}
	row, err := lookup(s.Format)
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, 12)
	args = append(args, row.switches...)

	color := s.ColorOrDefault()
	if row.color != "" {
		color = row.color
	}
	args = append(args, ColorFlag, color.String())

	if row.modifier != "" {
		args = append(args, row.modifier)
	}
	if !s.Denoise {
		args = append(args, NoDenoiseFlag)
	}
	if !s.Crop && !row.forceCrop {
		args = append(args, NoCropFlag)
	}
	if s.Compress {
		args = append(args, CompressFlag)
	}
	if dir := outputDir(s); dir != "" {
		args = append(args, OutDirFlag, dir)
	}

	return append(args, s.Input), nil
}

// outputDir returns the directory to pass with -o, or "" when the executable's
// default of writing next to the input is what the scenario expects.
func outputDir(s types.Scenario) string {
	if s.Output == "" {
		return ""
	}
	outDir := filepath.Dir(s.Output)
	if filepath.Clean(outDir) == filepath.Clean(filepath.Dir(s.Input)) {
		return ""
	}
	return outDir
}

// OutputExtension returns the file extension the executable appends for f.
func OutputExtension(f types.Format) (string, error) {
	row, err := lookup(f)
	if err != nil {
		return "", err
	}
	return row.ext, nil
}

// DefaultOutputPath returns where the executable writes the conversion of
// input when no output directory is given: the input path plus the extension.
func DefaultOutputPath(input string, f types.Format) (string, error) {
	ext, err := OutputExtension(f)
	if err != nil {
		return "", err
	}
	return input + ext, nil
}

// OutputPathIn returns the output path for input when written into dir.
func OutputPathIn(dir, input string, f types.Format) (string, error) {
	ext, err := OutputExtension(f)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(input)+ext), nil
}
