package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrscan/internal/cascade"
	"github.com/MeKo-Tech/qrscan/internal/detect"
	"github.com/MeKo-Tech/qrscan/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
	outputFormatText = "text"
)

// fileResult is the per-file output of the image command.
type fileResult struct {
	File     string        `json:"file" yaml:"file"`
	Detected bool          `json:"detected" yaml:"detected"`
	Payload  string        `json:"payload,omitempty" yaml:"payload,omitempty"`
	Corners  []utils.Point `json:"corners,omitempty" yaml:"corners,omitempty"`
	Variant  string        `json:"variant,omitempty" yaml:"variant,omitempty"`
	Attempts int           `json:"attempts" yaml:"attempts"`
	Region   string        `json:"region,omitempty" yaml:"region,omitempty"`
	HasCode  *bool         `json:"has_code,omitempty" yaml:"has_code,omitempty"`
}

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Detect QR codes in image files",
	Long: `Run the detection cascade on one or more image files.

Supported formats: JPEG, PNG, BMP, TIFF

Examples:
  qrscan image photo.jpg
  qrscan image *.png --format json
  qrscan image scan.jpg --output results.json
  qrscan image scan.jpg --detect-only`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format := cfg.Output.Format
		if cmd.Flags().Changed("format") {
			format, _ = cmd.Flags().GetString("format")
		}
		outputFile := cfg.Output.File
		if cmd.Flags().Changed("output") {
			outputFile, _ = cmd.Flags().GetString("output")
		}
		overlayDir := cfg.Output.OverlayDir
		if cmd.Flags().Changed("overlay-dir") {
			overlayDir, _ = cmd.Flags().GetString("overlay-dir")
		}
		padding := cfg.Cascade.Padding
		if cmd.Flags().Changed("padding") {
			padding, _ = cmd.Flags().GetInt("padding")
		}
		includeRegion := cfg.Cascade.IncludeRegion
		if cmd.Flags().Changed("region") {
			includeRegion, _ = cmd.Flags().GetBool("region")
		}
		multi, _ := cmd.Flags().GetBool("multi")
		detectOnly, _ := cmd.Flags().GetBool("detect-only")

		isValidFormat := false
		for _, f := range []string{outputFormatText, outputFormatJSON, outputFormatYAML} {
			if format == f {
				isValidFormat = true
				break
			}
		}
		if !isValidFormat {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", format)
		}
		if padding < 0 {
			return fmt.Errorf("invalid padding: %d (must be >= 0)", padding)
		}

		ctrl := cascade.New(detect.NewZXing())

		results := make([]fileResult, 0, len(args))
		for _, pth := range args {
			if !utils.IsSupportedImage(pth) {
				return fmt.Errorf("unsupported image format: %s", pth)
			}
			img, meta, err := utils.LoadImage(pth)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", pth, err)
			}

			res, err := scanOne(ctrl, img, meta.Path, scanOptions{
				multi:         multi,
				detectOnly:    detectOnly,
				includeRegion: includeRegion,
				padding:       padding,
			})
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", pth, err)
			}

			if overlayDir != "" && res.Detected && len(res.Corners) >= 3 {
				if path, err := writeOverlay(overlayDir, meta.Path, img, res.Corners); err == nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved overlay: %s\n", path)
				}
			}

			results = append(results, res)
		}

		out, err := formatResults(results, format)
		if err != nil {
			return err
		}

		if outputFile != "" {
			if err := os.WriteFile(outputFile, []byte(out), 0o600); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
			return nil
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

type scanOptions struct {
	multi         bool
	detectOnly    bool
	includeRegion bool
	padding       int
}

// scanOne runs the requested mode of detection on a single image.
func scanOne(ctrl *cascade.Controller, img image.Image, path string, opts scanOptions) (fileResult, error) {
	res := fileResult{File: path}

	if opts.detectOnly {
		has, _, err := ctrl.HasCode(img)
		if err != nil {
			return res, err
		}
		res.Detected = has
		res.HasCode = &has
		return res, nil
	}

	var outcome cascade.Outcome
	if opts.multi {
		mo, err := ctrl.RunMulti(img)
		if err != nil {
			return res, err
		}
		if mo.Count > 0 {
			outcome = mo.Codes[0]
		}
	} else {
		var err error
		outcome, err = ctrl.Run(img)
		if err != nil {
			return res, err
		}
	}

	res.Detected = outcome.Detected
	res.Payload = outcome.Payload
	res.Corners = outcome.Corners
	res.Variant = outcome.Variant
	res.Attempts = outcome.Attempts

	if outcome.Detected && opts.includeRegion {
		if region, ok := cascade.ExtractRegion(img, outcome.Corners, opts.padding); ok {
			if data, err := cascade.EncodePNG(region.Image); err == nil {
				res.Region = cascade.DataURI(data)
			}
		}
	}

	return res, nil
}

// writeOverlay saves a copy of the image with the code outline drawn on it.
func writeOverlay(dir, srcPath string, img image.Image, corners []utils.Point) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	hull := utils.ConvexHull(corners)
	utils.DrawPolygon(canvas, hull, color.RGBA{R: 255, A: 255}, 2)

	base := filepath.Base(srcPath)
	ext := filepath.Ext(base)
	outPath := filepath.Join(dir, strings.TrimSuffix(base, ext)+"_overlay.png")

	f, err := os.Create(outPath) //nolint:gosec // G304: user-controlled output path is intentional
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	if err := png.Encode(f, canvas); err != nil {
		return "", err
	}
	return outPath, nil
}

// formatResults renders results in the requested output format.
func formatResults(results []fileResult, format string) (string, error) {
	switch format {
	case outputFormatJSON:
		bts, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(bts), nil
	case outputFormatYAML:
		bts, err := yaml.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return string(bts), nil
	default:
		var sb strings.Builder
		for _, r := range results {
			switch {
			case r.HasCode != nil:
				fmt.Fprintf(&sb, "%s: has_code=%t\n", r.File, *r.HasCode)
			case r.Detected:
				fmt.Fprintf(&sb, "%s: detected (attempts=%d", r.File, r.Attempts)
				if r.Variant != "" {
					fmt.Fprintf(&sb, ", variant=%s", r.Variant)
				}
				sb.WriteString(")\n")
				if r.Payload != "" {
					fmt.Fprintf(&sb, "  payload: %s\n", r.Payload)
				}
			default:
				fmt.Fprintf(&sb, "%s: no code found (attempts=%d)\n", r.File, r.Attempts)
			}
		}
		return strings.TrimRight(sb.String(), "\n"), nil
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	imageCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	imageCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	imageCmd.Flags().Int("padding", 10, "padding in pixels around the extracted code region")
	imageCmd.Flags().Bool("region", true, "include the cropped code region as a data URI")
	imageCmd.Flags().Bool("multi", false, "detect multiple codes")
	imageCmd.Flags().Bool("detect-only", false, "only check for code presence, skip decoding")
	imageCmd.Flags().String("overlay-dir", "", "directory to write overlay images (drawn code outlines)")

	v := GetConfigLoader().Viper()
	for _, binding := range []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.overlay_dir", "overlay-dir"},
		{"cascade.padding", "padding"},
		{"cascade.include_region", "region"},
	} {
		if err := v.BindPFlag(binding.key, imageCmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
