package stamp

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	DefaultFontName = "Helvetica"
	DefaultFontSize = 10

	// lineHeightFactor derives a line height from the font size when none is set
	lineHeightFactor = 1.2
)

// Slot is the fixed position at which one logical value is stamped
type Slot struct {
	Key        string  `mapstructure:"key" json:"key"`
	Page       int     `mapstructure:"page" json:"page"`
	X          float64 `mapstructure:"x" json:"x"`
	Y          float64 `mapstructure:"y" json:"y"`
	Width      float64 `mapstructure:"width" json:"width"`
	LineHeight float64 `mapstructure:"line_height" json:"line_height"`
	FontName   string  `mapstructure:"font_name" json:"font_name"`
	FontSize   int     `mapstructure:"font_size" json:"font_size"`
}

// Layout is the ordered set of stamp slots applied to every template
type Layout struct {
	Slots []Slot `mapstructure:"slots" json:"slots"`
}

// DefaultLayout returns the built-in expense report layout (US Letter, points)
func DefaultLayout() Layout {
	return Layout{Slots: []Slot{
		{Key: "employeeName", Page: 1, X: 150, Y: 680, Width: 200, LineHeight: 12},
		{Key: "department", Page: 1, X: 400, Y: 680, Width: 150, LineHeight: 12},
		{Key: "date", Page: 1, X: 150, Y: 655, Width: 120, LineHeight: 12},
		{Key: "typeOfExpense", Page: 1, X: 150, Y: 630, Width: 200, LineHeight: 12},
		{Key: "amount", Page: 1, X: 400, Y: 630, Width: 150, LineHeight: 12},
		{Key: "businessPurpose", Page: 1, X: 150, Y: 600, Width: 380, LineHeight: 12},
		{Key: "description", Page: 1, X: 150, Y: 540, Width: 380, LineHeight: 12},
		{Key: "approverName", Page: 1, X: 150, Y: 160, Width: 200, LineHeight: 12},
		{Key: "approvalDate", Page: 1, X: 400, Y: 160, Width: 150, LineHeight: 12},
	}}.withDefaults()
}

// LoadLayout reads a layout from a YAML, JSON or TOML file with a top-level
// "slots" list
func LoadLayout(path string) (Layout, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Layout{}, fmt.Errorf("failed to read stamp layout %s: %w", path, err)
	}

	var layout Layout
	if err := v.Unmarshal(&layout); err != nil {
		return Layout{}, fmt.Errorf("failed to decode stamp layout %s: %w", path, err)
	}

	layout = layout.withDefaults()
	if err := layout.Validate(); err != nil {
		return Layout{}, fmt.Errorf("invalid stamp layout %s: %w", path, err)
	}
	return layout, nil
}

// withDefaults fills in font and line height where a slot leaves them unset
func (l Layout) withDefaults() Layout {
	slots := make([]Slot, len(l.Slots))
	for i, s := range l.Slots {
		if s.FontName == "" {
			s.FontName = DefaultFontName
		}
		if s.FontSize <= 0 {
			s.FontSize = DefaultFontSize
		}
		if s.LineHeight <= 0 {
			s.LineHeight = float64(s.FontSize) * lineHeightFactor
		}
		slots[i] = s
	}
	return Layout{Slots: slots}
}

// Validate checks that every slot can be placed on a page
func (l Layout) Validate() error {
	if len(l.Slots) == 0 {
		return fmt.Errorf("layout has no slots")
	}

	seen := make(map[string]bool, len(l.Slots))
	for i, s := range l.Slots {
		if s.Key == "" {
			return fmt.Errorf("slot %d: key cannot be empty", i)
		}
		if seen[s.Key] {
			return fmt.Errorf("slot %d: duplicate key %q", i, s.Key)
		}
		seen[s.Key] = true

		if s.Page < 1 {
			return fmt.Errorf("slot %q: page must be 1 or greater", s.Key)
		}
		if s.X < 0 || s.Y < 0 {
			return fmt.Errorf("slot %q: position must not be negative", s.Key)
		}
		if s.Width < 0 {
			return fmt.Errorf("slot %q: width must not be negative", s.Key)
		}
	}
	return nil
}

// Keys returns the slot keys in layout order
func (l Layout) Keys() []string {
	keys := make([]string, len(l.Slots))
	for i, s := range l.Slots {
		keys[i] = s.Key
	}
	return keys
}
