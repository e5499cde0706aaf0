package idcard

// Kind classifies a rendered element.
type Kind string

const (
	KindGradient    Kind = "gradient"
	KindImage       Kind = "image"
	KindPlaceholder Kind = "placeholder"
	KindText        Kind = "text"
)

// Shape is the outline of an image or placeholder element.
type Shape string

const (
	ShapeRect   Shape = "rect"
	ShapeCircle Shape = "circle"
)

// Element is one layer of a composition.
type Element struct {
	Kind     Kind    `json:"kind"`
	Field    Field   `json:"field"`
	Z        int     `json:"z"`
	Rect     Rect    `json:"rect"`
	Shape    Shape   `json:"shape,omitempty"`
	Source   string  `json:"source,omitempty"`
	Fit      string  `json:"fit,omitempty"`
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Bold     bool    `json:"bold,omitempty"`
	Align    string  `json:"align,omitempty"`
	Color    string  `json:"color,omitempty"`
	ColorTo  string  `json:"color_to,omitempty"`
}

// Composition is the rendered card: elements are ordered bottom to top.
type Composition struct {
	Variant  Variant   `json:"variant"`
	Mode     Mode      `json:"mode"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Theme    string    `json:"theme"`
	Elements []Element `json:"elements"`
}

// Element returns the first element for field.
func (c Composition) Element(field Field) (Element, bool) {
	for _, el := range c.Elements {
		if el.Field == field {
			return el, true
		}
	}
	return Element{}, false
}

// TextBlock returns the student text lines (primary lines, then details) in render order.
func (c Composition) TextBlock() []string {
	var lines []string
	for _, el := range c.Elements {
		if el.Kind != KindText || el.Field == FieldSchool {
			continue
		}
		lines = append(lines, el.Text)
	}
	return lines
}

// Options tune a single composition.
type Options struct {
	Variant   Variant
	Width     float64
	Height    float64
	Mode      Mode
	Positions PositionSpec
	Theme     Theme
}

// Compose lays out content according to opts.
func Compose(content CardContent, opts Options) Composition {
	variant := opts.Variant
	if !variant.Valid() {
		variant = Vertical
	}
	m := metricsFor(variant)
	theme := opts.Theme.orDefault()

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = m.width
	}
	if height <= 0 {
		height = m.height
	}
	sx, sy := width/m.width, height/m.height

	mode := opts.Mode
	if mode == "" {
		mode = ModeFlow
		if len(opts.Positions) > 0 {
			mode = ModePositioned
		}
	}

	var placed slots
	switch mode {
	case ModePositioned:
		placed = m.defaults.scale(sx, sy)
		for field, placement := range opts.Positions {
			if r := placed.ref(field); r != nil {
				*r = placement.apply(*r)
			}
		}
	default:
		mode = ModeFlow
		placed = m.stack(m).scale(sx, sy)
	}

	b := builder{theme: theme, align: m.textAlign}
	if content.DesignURL != "" {
		b.add(Element{Kind: KindImage, Field: FieldBackground, Rect: Rect{Width: width, Height: height}, Source: content.DesignURL, Fit: "cover"})
	} else {
		b.add(Element{Kind: KindGradient, Field: FieldBackground, Rect: Rect{Width: width, Height: height}, Color: theme.GradientFrom, ColorTo: theme.GradientTo})
	}
	b.image(FieldLogo, placed.logo, content.LogoURL, ShapeCircle)
	b.text(FieldSchool, placed.school, content.SchoolName, true)
	b.image(FieldPhoto, placed.photo, content.PhotoURL, ShapeRect)
	b.text(FieldName, placed.name, content.StudentName, true)
	b.text(FieldRoll, placed.roll, content.RollNumber, false)
	b.text(FieldFather, placed.father, content.FatherName, false)

	lineGap, lineHeight := m.lineGap*sy, m.detailHeight*sy
	limit := height - m.padding*sy
	top := placed.father.Bottom() + lineGap
	for _, d := range content.details() {
		r := Rect{Top: top, Left: placed.father.Left, Width: placed.father.Width, Height: lineHeight}
		if r.Bottom() > limit {
			break
		}
		b.detail(DetailField(d.key), r, d.label+": "+d.value)
		top = r.Bottom() + lineGap
	}

	return Composition{
		Variant:  variant,
		Mode:     mode,
		Width:    width,
		Height:   height,
		Theme:    theme.Name,
		Elements: b.elements,
	}
}

type builder struct {
	theme    Theme
	align    string
	elements []Element
}

func (b *builder) add(el Element) {
	el.Z = len(b.elements)
	b.elements = append(b.elements, el)
}

func (b *builder) image(field Field, r Rect, source string, shape Shape) {
	if source == "" {
		b.add(Element{Kind: KindPlaceholder, Field: field, Rect: r, Shape: shape, Color: b.theme.Placeholder})
		return
	}
	b.add(Element{Kind: KindImage, Field: field, Rect: r, Shape: shape, Source: source, Fit: "cover"})
}

func (b *builder) text(field Field, r Rect, value string, bold bool) {
	if value == "" {
		return
	}
	b.add(Element{Kind: KindText, Field: field, Rect: r, Text: value, FontSize: r.Height * 0.75, Bold: bold, Align: b.align, Color: b.theme.Text})
}

func (b *builder) detail(field Field, r Rect, value string) {
	b.add(Element{Kind: KindText, Field: field, Rect: r, Text: value, FontSize: r.Height * 0.75, Align: b.align, Color: b.theme.Muted})
}
