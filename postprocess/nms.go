package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-anchors/boxes"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	IoUThreshold float64 `json:"iou_threshold" yaml:"iou_threshold"` // Overlap threshold for suppression.
	ClassAware   bool    `json:"class_aware" yaml:"class_aware"`     // If true, suppress only within same class.
	TopK         int     `json:"top_k" yaml:"top_k"`                 // Keep at most this many results; 0 keeps all.
}

// DefaultNMSConfig returns the usual SSD inference settings.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: 0.45, ClassAware: true, TopK: 200}
}

// ApplyNMS performs greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Detections in any order. The slice is not modified.
//   - config: NMS configuration. With ClassAware set, a box only suppresses boxes of
//     its own class.
//
// Returns:
//   - Kept detections sorted by descending score (ties keep input order). If no
//     detections are provided, returns nil.
func ApplyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	sorted := append([]Result(nil), detections...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := sorted[i]
		filtered = append(filtered, anchor)
		used[i] = true
		if config.TopK > 0 && len(filtered) == config.TopK {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.Class != sorted[j].Class {
				continue
			}

			// Suppress if IoU exceeds threshold
			if boxes.IoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
