package pipeline

// fallbackDesign is the degraded-mode payload substituted when the design
// collaborator is unreachable or rejects the request. Design is the only
// stage with a fallback: a default look keeps the pipeline moving, whereas
// strategy, content, and build outputs cannot be meaningfully defaulted.
func fallbackDesign() map[string]any {
	return map[string]any{
		"colorPalette": map[string]any{
			"primary":    "#3B82F6",
			"secondary":  "#1E40AF",
			"accent":     "#60A5FA",
			"background": "#FFFFFF",
			"text":       "#1F2937",
		},
		"typography": map[string]any{
			"primary":   "Inter",
			"secondary": "system-ui",
		},
		"layout":   "modern-minimal",
		"fallback": true,
	}
}
