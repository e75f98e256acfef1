package export

// FileName returns the download name of an export, e.g. mermaid-graph-1080p.png
// or mermaid-graph-1.5x1080p.svg.
func FileName(multiplier float64, f Format) string {
	m := NormalizeMultiplier(multiplier)
	if m == 1 {
		return "mermaid-graph-1080p." + f.Extension()
	}
	return "mermaid-graph-" + FormatMultiplier(m) + "x1080p." + f.Extension()
}
