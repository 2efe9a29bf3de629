// Package config - Pipeline configuration for anchor matching and box encoding.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-anchors/encoding"
	"github.com/nvr-ai/go-anchors/matcher"
	"github.com/nvr-ai/go-anchors/postprocess"
	"github.com/nvr-ai/go-anchors/priors"
)

// Config represents the settings shared by target encoding at training time and box
// decoding at inference time. Both sides must agree on Priors and Variances.
type Config struct {
	// Priors names the prior box recipe.
	Priors priors.Name `json:"priors" yaml:"priors"`

	// IoUThreshold is the minimum overlap for a non-forced anchor assignment.
	IoUThreshold float64 `json:"iou_threshold" yaml:"iou_threshold"`

	// Variances scale center offsets (index 0) and log size ratios (index 1).
	Variances encoding.Variances `json:"variances" yaml:"variances"`

	// NMS controls suppression of decoded detections.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// Default returns the SSD300 / Pascal VOC configuration.
//
// @example
// cfg := config.Default()
// cfg.Priors = priors.NameCOCO
func Default() Config {
	return Config{
		Priors:       priors.NameVOC,
		IoUThreshold: matcher.DefaultConfig().IoUThreshold,
		Variances:    encoding.DefaultVariances,
		NMS:          postprocess.DefaultNMSConfig(),
	}
}

// Load reads a YAML configuration file. Fields absent from the file keep their
// Default values. The result is validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can drive matching and encoding.
func (c Config) Validate() error {
	if _, err := priors.Lookup(c.Priors); err != nil {
		return err
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return errors.Errorf("iou_threshold must be within [0, 1], got %v", c.IoUThreshold)
	}
	if err := c.Variances.Validate(); err != nil {
		return err
	}
	if c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
		return errors.Errorf("nms.iou_threshold must be within [0, 1], got %v", c.NMS.IoUThreshold)
	}
	if c.NMS.TopK < 0 {
		return errors.Errorf("nms.top_k must not be negative, got %d", c.NMS.TopK)
	}
	return nil
}

// Matcher returns the matching configuration.
func (c Config) Matcher() matcher.Config {
	return matcher.Config{IoUThreshold: c.IoUThreshold}
}
