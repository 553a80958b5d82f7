// Package hdredit provides a non-destructive tone and color adjustment pipeline for HDR images.
//
// Every control change recomputes the derived image from an untouched original through a fixed
// chain of stages: exposure, contrast, saturation, lightness band mask, tone curve and selective
// color editing. Pixels are kept as linear-light float32 RGB relative to SDR white and are never
// clamped to [0, 1] between stages.
package hdredit
