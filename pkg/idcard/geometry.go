package idcard

// Rect is a pixel rectangle relative to the card's top-left corner.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) scale(sx, sy float64) Rect {
	return Rect{Top: r.Top * sy, Left: r.Left * sx, Width: r.Width * sx, Height: r.Height * sy}
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Field names an element on the card.
type Field string

const (
	FieldBackground Field = "background"
	FieldLogo       Field = "logo"
	FieldSchool     Field = "school"
	FieldPhoto      Field = "photo"
	FieldName       Field = "name"
	FieldRoll       Field = "roll"
	FieldFather     Field = "father"
)

// positionable lists the fields a PositionSpec may move.
var positionable = []Field{FieldLogo, FieldPhoto, FieldName, FieldRoll, FieldFather}

// Positionable reports whether f can be overridden through a PositionSpec.
func Positionable(f Field) bool {
	for _, p := range positionable {
		if p == f {
			return true
		}
	}
	return false
}

// DetailField returns the field name used for a secondary detail line.
func DetailField(key string) Field {
	return Field("detail." + key)
}

// Placement overrides the rectangle of one field. Nil sizes keep the default size.
type Placement struct {
	Top    float64  `json:"top"`
	Left   float64  `json:"left"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

func (p Placement) apply(r Rect) Rect {
	r.Top = p.Top
	r.Left = p.Left
	if p.Width != nil {
		r.Width = *p.Width
	}
	if p.Height != nil {
		r.Height = *p.Height
	}
	return r
}

// PositionSpec maps positionable fields to pixel placements.
type PositionSpec map[Field]Placement

// Merge returns a copy of p with every entry of other applied on top.
func (p PositionSpec) Merge(other PositionSpec) PositionSpec {
	if len(p) == 0 && len(other) == 0 {
		return nil
	}
	merged := make(PositionSpec, len(p)+len(other))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Unknown returns the keys of p that are not positionable.
func (p PositionSpec) Unknown() []Field {
	var unknown []Field
	for k := range p {
		if !Positionable(k) {
			unknown = append(unknown, k)
		}
	}
	return unknown
}
