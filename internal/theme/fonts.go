package theme

// CSS font stacks offered in the font selector.
const (
	FontLXGW            = `"LXGW WenKai", "霞鹜文楷", "Source Han Sans SC", "思源黑体 CN", sans-serif`
	FontSourceHanSans   = `"Source Han Sans SC", "思源黑体 CN", "Roboto", "Inter", sans-serif`
	FontYaHei           = `"Microsoft YaHei", "微软雅黑", "Segoe UI", sans-serif`
	FontRobotoInterSans = `"Roboto", "Inter", "Helvetica Neue", "Arial", "Noto Sans", sans-serif`
	FontSourceHanSerif  = `"Source Han Serif SC", "思源宋体 CN", "Georgia", serif`
	FontGeometricSans   = `"Futura", "Avenir", "Century Gothic", sans-serif`
	FontDecoGeometric   = `"Bebas Neue", "Impact", "Haettenschweiler", "Arial Narrow Bold", sans-serif`
	FontVintageSerif    = `"Baskerville Old Face", "Garamond", "Times New Roman", serif`
	FontMonospaceTech   = `"Space Mono", "Fira Code", "Courier New", monospace`
	FontSongti          = `"SimSun", "宋体", serif`
	FontFangsong        = `"FangSong", "仿宋", serif`
	FontKaiti           = `"KaiTi", "楷体", "STKaiti", serif`
	FontHeiti           = `"SimHei", "黑体", sans-serif`
)

// FontThemeDefault selects the active theme's own font family.
const FontThemeDefault = "theme-default"

// FontOption is one entry of the font selector.
type FontOption struct {
	Value string `json:"value"`
	Name  string `json:"name"`
}

var fonts = []FontOption{
	{Value: FontThemeDefault, Name: "Theme default"},
	{Value: FontYaHei, Name: "Microsoft YaHei"},
	{Value: FontSourceHanSans, Name: "Source Han Sans"},
	{Value: FontSourceHanSerif, Name: "Source Han Serif"},
	{Value: FontLXGW, Name: "LXGW WenKai"},
	{Value: FontSongti, Name: "SimSun"},
	{Value: FontFangsong, Name: "FangSong"},
	{Value: FontKaiti, Name: "KaiTi"},
	{Value: FontHeiti, Name: "SimHei"},
	{Value: FontRobotoInterSans, Name: "Roboto / Inter (modern sans)"},
	{Value: FontMonospaceTech, Name: "Monospace (code)"},
	{Value: FontGeometricSans, Name: "Geometric sans"},
	{Value: FontDecoGeometric, Name: "Decorative sans"},
	{Value: FontVintageSerif, Name: "Vintage serif"},
}

// Fonts returns the font selector entries, the theme default sentinel first.
func Fonts() []FontOption {
	out := make([]FontOption, len(fonts))
	copy(out, fonts)
	return out
}

// KnownFont reports whether value is one of the offered font entries.
func KnownFont(value string) bool {
	for _, f := range fonts {
		if f.Value == value {
			return true
		}
	}
	return false
}

// ResolveFont returns the font family a render should use. The sentinel and
// the empty value resolve to the theme's fontFamily variable, falling back to
// the Roboto/Inter stack.
func ResolveFont(d Descriptor, value string) string {
	if value != "" && value != FontThemeDefault {
		return value
	}
	if f := d.String("fontFamily"); f != "" {
		return f
	}
	return FontRobotoInterSans
}
