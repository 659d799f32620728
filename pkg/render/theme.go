package render

// Theme is the color palette for the SVG sink. Fills are per node kind;
// highlight and fade apply when the state carries an active focus.
type Theme struct {
	Name        string
	Background  string
	TaskFill    string
	DataFill    string
	ParamsFill  string
	PipeFill    string
	Stroke      string
	EdgeStroke  string
	LabelColor  string
	Highlight   string
	FadeOpacity float64
}

// ThemeLight is the default palette.
var ThemeLight = Theme{
	Name:        "light",
	Background:  "#ffffff",
	TaskFill:    "#d7e3f4",
	DataFill:    "#e4f0df",
	ParamsFill:  "#f6e8c8",
	PipeFill:    "#ece6f2",
	Stroke:      "#44475a",
	EdgeStroke:  "#8a8f98",
	LabelColor:  "#1c1e26",
	Highlight:   "#d97706",
	FadeOpacity: 0.25,
}

// ThemeDark mirrors ThemeLight on a dark background.
var ThemeDark = Theme{
	Name:        "dark",
	Background:  "#15171e",
	TaskFill:    "#2d3a52",
	DataFill:    "#30422c",
	ParamsFill:  "#4d4028",
	PipeFill:    "#3c3350",
	Stroke:      "#aeb4c0",
	EdgeStroke:  "#5d636e",
	LabelColor:  "#e8eaf0",
	Highlight:   "#fbbf24",
	FadeOpacity: 0.3,
}

// ThemeByName resolves a theme by its name; "" resolves to ThemeLight.
func ThemeByName(name string) (Theme, bool) {
	switch name {
	case "", ThemeLight.Name:
		return ThemeLight, true
	case ThemeDark.Name:
		return ThemeDark, true
	}
	return Theme{}, false
}
