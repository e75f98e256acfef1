package theme

import "maps"

// GanttDefaults are merged into every built-in theme before its own values.
var GanttDefaults = map[string]any{
	"ganttDbACompleted":      "#A0AEC0",
	"ganttDbAActive":         "#63B3ED",
	"ganttDbADone":           "#E2E8F0",
	"ganttDbACrit":           "#FC8181",
	"ganttDbAMilestone":      "#A78BFA",
	"ganttTitleColor":        "#2D3748",
	"ganttGridColor":         "#E2E8F0",
	"ganttTodayMarkerStroke": "#F59E0B",
	"ganttBarHeight":         20,
	"ganttTaskHeight":        20,
	"ganttPadding":           6,
	"ganttFontSize":          12,
	"ganttSectionFontSize":   14,
	"ganttAxisFormat":        "%Y-%m-%d",
}

type vars = map[string]any

// withGantt layers base, the gantt defaults and overrides, later wins.
func withGantt(base, overrides vars) vars {
	out := make(vars, len(base)+len(GanttDefaults)+len(overrides))
	maps.Copy(out, base)
	maps.Copy(out, GanttDefaults)
	maps.Copy(out, overrides)
	return out
}

func pie(colors ...string) vars {
	out := make(vars, len(colors))
	for i, c := range colors {
		out["pie"+string(rune('1'+i))] = c
	}
	return out
}

func merge(parts ...vars) vars {
	out := make(vars)
	for _, p := range parts {
		maps.Copy(out, p)
	}
	return out
}

var builtin = []Descriptor{
	{ID: "mermaidDefault", Name: "Default", Kind: KindDefault,
		Variables: withGantt(vars{"fontFamily": FontRobotoInterSans}, nil)},
	{ID: "mermaidNeutral", Name: "Neutral", Kind: KindNeutral,
		Variables: withGantt(vars{"fontFamily": FontRobotoInterSans}, nil)},
	{ID: "mermaidDark", Name: "Dark", Kind: KindDark,
		Variables: withGantt(vars{
			"fontFamily":       FontRobotoInterSans,
			"background":       "#333333",
			"primaryColor":     "#505050",
			"primaryTextColor": "#f0f0f0",
			"lineColor":        "#888888",
			"textColor":        "#f0f0f0",
		}, vars{
			"ganttTitleColor":   "#E0E0E0",
			"ganttGridColor":    "#4A5568",
			"ganttDbACompleted": "#718096",
			"ganttDbAActive":    "#A0AEC0",
			"ganttDbACrit":      "#E53E3E",
			"ganttDbAMilestone": "#9F7AEA",
		})},
	{ID: "mermaidForest", Name: "Forest", Kind: KindForest,
		Variables: withGantt(vars{"fontFamily": FontRobotoInterSans}, nil)},

	// Light
	{ID: "contrastModernLight", Name: "Modern Contrast Light", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontRobotoInterSans,
			"background":         "#FFFFFF",
			"primaryColor":       "#F7FAFC",
			"primaryTextColor":   "#1A202C",
			"primaryBorderColor": "#2563EB",
			"lineColor":          "#CBD5E1",
			"textColor":          "#2D3748",
			"fontSize":           "15px",
		}, pie("#2563EB", "#16A34A", "#EA580C", "#DC2626", "#7C3AED")), vars{
			"ganttTitleColor":      "#1A202C",
			"ganttSectionFontSize": 15,
			"ganttBarHeight":       20,
			"ganttGridColor":       "#E2E8F0",
			"ganttDbAMilestone":    "#7C3AED",
		})},
	{ID: "minimalistLightRefined", Name: "Minimalist Light", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontLXGW,
			"background":         "#FDFDFD",
			"primaryColor":       "#FFFFFF",
			"primaryTextColor":   "#2D3748",
			"primaryBorderColor": "#E2E8F0",
			"lineColor":          "#A0AEC0",
			"textColor":          "#4A5568",
			"fontSize":           "14px",
		}, pie("#4299E1", "#48BB78", "#ED8936", "#F56565", "#ECC94B")), vars{
			"ganttTitleColor":   "#2D3748",
			"ganttGridColor":    "#E2E8F0",
			"ganttDbACompleted": "#A0AEC0",
			"ganttDbAActive":    "#E6FFFA",
			"ganttDbACrit":      "#FED7D7",
		})},
	{ID: "appleInspiredLight", Name: "Apple Inspired Light", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontRobotoInterSans,
			"background":         "#FFFFFF",
			"primaryColor":       "#F5F5F7",
			"primaryTextColor":   "#1D1D1F",
			"primaryBorderColor": "#C6C6C8",
			"lineColor":          "#D1D1D6",
			"textColor":          "#333333",
			"fontSize":           "14px",
		}, pie("#0A84FF", "#30D158", "#FF9F0A", "#FF375F", "#AF52DE")), vars{
			"ganttTitleColor": "#1D1D1F",
		})},
	{ID: "paperAndInk", Name: "Paper & Ink", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontSourceHanSerif,
			"background":         "#FDFCFB",
			"primaryColor":       "#F7F5F2",
			"primaryTextColor":   "#2F2C2A",
			"primaryBorderColor": "#B0A8A1",
			"lineColor":          "#D3CCC7",
			"textColor":          "#423B35",
			"fontSize":           "14px",
		}, pie("#594F48", "#8C7D70", "#A99985", "#C6B89E", "#E0D6CC")), vars{
			"ganttBarHeight":  16,
			"ganttTitleColor": "#2F2C2A",
		})},
	{ID: "mujiInspired", Name: "Muji Inspired", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontLXGW,
			"background":         "#F5F5F1",
			"primaryColor":       "#FFFFFF",
			"primaryTextColor":   "#333333",
			"primaryBorderColor": "#B0A090",
			"lineColor":          "#A0A0A0",
			"textColor":          "#4A4A4A",
			"fontSize":           "13px",
		}, pie("#8B7D72", "#A19387", "#B0A090", "#C0B0A0", "#D4C8BE")), vars{
			"ganttFontSize":        10,
			"ganttSectionFontSize": 12,
			"ganttTitleColor":      "#3A3A3A",
		})},

	// Dark
	{ID: "contrastDarkPro", Name: "Modern Contrast Dark", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontRobotoInterSans,
			"background":         "#111827",
			"primaryColor":       "#1F2937",
			"primaryTextColor":   "#F9FAFB",
			"primaryBorderColor": "#3B82F6",
			"lineColor":          "#4B5563",
			"textColor":          "#E5E7EB",
			"fontSize":           "15px",
		}, pie("#3B82F6", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6")), vars{
			"ganttTitleColor":      "#F9FAFB",
			"ganttSectionFontSize": 15,
			"ganttBarHeight":       20,
			"ganttGridColor":       "#374151",
			"ganttDbACompleted":    "#4B5563",
			"ganttDbAActive":       "#60A5FA",
			"ganttDbACrit":         "#F87171",
			"ganttDbAMilestone":    "#A78BFA",
		})},
	{ID: "minimalistDarkRefined", Name: "Minimalist Dark", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontLXGW,
			"background":         "#1A202C",
			"primaryColor":       "#2D3748",
			"primaryTextColor":   "#E2E8F0",
			"primaryBorderColor": "#4A5568",
			"lineColor":          "#718096",
			"textColor":          "#A0AEC0",
			"fontSize":           "14px",
		}, pie("#63B3ED", "#68D391", "#F6AD55", "#FC8181", "#F6E05E")), vars{
			"ganttTitleColor": "#E2E8F0",
			"ganttGridColor":  "#2D3748",
		})},
	{ID: "cyberpunkNeonVoltage", Name: "Cyberpunk Neon", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontMonospaceTech,
			"background":         "#0D0221",
			"primaryColor":       "#1A0A3B",
			"primaryTextColor":   "#9EF0F0",
			"primaryBorderColor": "#F92A82",
			"lineColor":          "#FF00FF",
			"textColor":          "#C0CAF5",
			"fontSize":           "14px",
		}, pie("#F92A82", "#00F0B5", "#7DF9FF", "#F4D35E", "#FF47DA")), vars{
			"ganttTitleColor":   "#9EF0F0",
			"ganttGridColor":    "#3B3E51",
			"ganttDbACompleted": "#F92A82",
			"ganttDbAActive":    "#00F0B5",
			"ganttFontSize":     11,
		})},
	{ID: "modernGraphite", Name: "Modern Graphite", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontRobotoInterSans,
			"background":         "#343A40",
			"primaryColor":       "#495057",
			"primaryTextColor":   "#F8F9FA",
			"lineColor":          "#6C757D",
			"primaryBorderColor": "#ADB5BD",
			"textColor":          "#CED4DA",
			"fontSize":           "14px",
		}, pie("#6C757D", "#ADB5BD", "#CED4DA", "#DEE2E6", "#F8F9FA")), vars{
			"ganttFontSize":     10,
			"ganttTitleColor":   "#F8F9FA",
			"ganttGridColor":    "#495057",
			"ganttDbACompleted": "#6C757D",
			"ganttDbAActive":    "#ADB5BD",
			"ganttDbACrit":      "#DEE2E6",
			"ganttDbAMilestone": "#F8F9FA",
		})},

	// Professional
	{ID: "professionalBluePrint", Name: "Professional Blueprint", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontRobotoInterSans,
			"background":         "#1A237E",
			"primaryColor":       "#283593",
			"primaryTextColor":   "#E3F2FD",
			"primaryBorderColor": "#5C6BC0",
			"lineColor":          "#90CAF9",
			"textColor":          "#BBDEFB",
			"fontSize":           "13px",
		}, pie("#42A5F5", "#90CAF9", "#E3F2FD", "#1E88E5", "#64B5F6")), vars{
			"ganttTitleColor":        "#E3F2FD",
			"ganttAxisFormat":        "%m/%d",
			"ganttGridColor":         "#3949AB",
			"ganttTodayMarkerStroke": "#FFCA28",
			"ganttBarHeight":         18,
			"ganttTaskHeight":        18,
			"ganttSectionFontSize":   13,
		})},
	{ID: "mcKinseyBlueFocus", Name: "McKinsey Blue Focus", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontSourceHanSans,
			"background":         "#FFFFFF",
			"primaryColor":       "#F0F5FA",
			"primaryTextColor":   "#051C2C",
			"primaryBorderColor": "#0057D2",
			"lineColor":          "#A9B4BE",
			"textColor":          "#223548",
			"fontSize":           "14px",
		}, pie("#0057D2", "#4DB1FF", "#00B7C3", "#5A6872", "#A9B4BE")), vars{
			"ganttFontSize":        11,
			"ganttSectionFontSize": 13,
			"ganttTitleColor":      "#051C2C",
		})},
	{ID: "googleMaterial", Name: "Material Design", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontRobotoInterSans,
			"background":         "#FFFFFF",
			"primaryColor":       "#E3F2FD",
			"primaryTextColor":   "#0D47A1",
			"primaryBorderColor": "#1976D2",
			"lineColor":          "#90CAF9",
			"textColor":          "#212121",
			"fontSize":           "14px",
		}, pie("#2196F3", "#4CAF50", "#FFC107", "#F44336", "#673AB7")), vars{
			"ganttTitleColor": "#0D47A1",
		})},
	{ID: "academicStandard", Name: "Academic Standard", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontSourceHanSerif,
			"background":         "#F8F8F8",
			"primaryColor":       "#EAEAEA",
			"primaryTextColor":   "#303030",
			"lineColor":          "#C0C0C0",
			"primaryBorderColor": "#A0A0A0",
			"textColor":          "#303030",
			"fontSize":           "14px",
		}, pie("#4A6B82", "#7FA2BF", "#B3C9DD", "#5E81AC", "#87A7C0")), vars{
			"ganttTitleColor": "#303030",
		})},

	// Artistic
	{ID: "creativeVitality", Name: "Creative Vitality", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontGeometricSans,
			"background":         "#FFFBEB",
			"primaryColor":       "#FEF3C7",
			"primaryTextColor":   "#92400E",
			"primaryBorderColor": "#F59E0B",
			"lineColor":          "#FCD34D",
			"textColor":          "#78350F",
			"fontSize":           "15px",
		}, pie("#F59E0B", "#6366F1", "#D97706", "#4F46E5", "#FBBF24")), vars{
			"ganttTitleColor":      "#92400E",
			"ganttSectionFontSize": 16,
			"ganttBarHeight":       22,
			"ganttGridColor":       "#FDE68A",
		})},
	{ID: "bauhausInspired", Name: "Bauhaus Inspired", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontGeometricSans,
			"background":         "#F0EFEB",
			"primaryColor":       "#FFFFFF",
			"primaryTextColor":   "#000000",
			"primaryBorderColor": "#000000",
			"lineColor":          "#000000",
			"textColor":          "#000000",
			"fontSize":           "14px",
		}, pie("#DE1A1A", "#FFDD00", "#0057A8", "#333333", "#F0EFEB")), vars{
			"ganttAxisFormat":      "%Y/%m/%d",
			"ganttFontSize":        11,
			"ganttSectionFontSize": 13,
			"ganttTitleColor":      "#000000",
		})},
	{ID: "xmOceanicBlue", Name: "Oceanic Blue", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontSourceHanSans,
			"background":         "#E6F3F7",
			"primaryColor":       "#B3D9E6",
			"primaryTextColor":   "#004C6D",
			"primaryBorderColor": "#3D8DA9",
			"lineColor":          "#60A5C0",
			"textColor":          "#003B54",
			"fontSize":           "14px",
		}, pie("#0077A2", "#3D8DA9", "#60A5C0", "#87BED1", "#ADD8E6")), vars{
			"ganttBarHeight":  18,
			"ganttTitleColor": "#004C6D",
		})},
	{ID: "xmForestPath", Name: "Forest Path", Kind: KindBase,
		Variables: withGantt(merge(vars{
			"fontFamily":         FontLXGW,
			"background":         "#F2F5F0",
			"primaryColor":       "#DDE5D9",
			"primaryTextColor":   "#2A402D",
			"primaryBorderColor": "#677F6B",
			"lineColor":          "#8BA082",
			"textColor":          "#1E3021",
			"fontSize":           "14px",
		}, pie("#4CAF50", "#66BB6A", "#81C784", "#A5D6A7", "#C8E6C9")), vars{
			"ganttBarHeight":  18,
			"ganttTitleColor": "#2A402D",
		})},
}

// Builtin returns the catalog shipped with the editor.
func Builtin() *Catalog {
	c, err := NewCatalog(builtin...)
	if err != nil {
		panic("theme: invalid built-in catalog: " + err.Error())
	}
	return c
}
