package idcard

type size struct {
	w, h float64
}

// metrics describes one variant in base (unscaled) pixels.
type metrics struct {
	width, height float64
	padding       float64
	gap           float64
	lineGap       float64
	logo          size
	photo         size
	schoolHeight  float64
	nameHeight    float64
	lineHeight    float64
	detailHeight  float64
	textAlign     string
	stack         func(m metrics) slots
	defaults      slots
}

// slots holds the rectangles of every positionable element plus the school header.
type slots struct {
	logo   Rect
	school Rect
	photo  Rect
	name   Rect
	roll   Rect
	father Rect
}

func (s slots) scale(sx, sy float64) slots {
	return slots{
		logo:   s.logo.scale(sx, sy),
		school: s.school.scale(sx, sy),
		photo:  s.photo.scale(sx, sy),
		name:   s.name.scale(sx, sy),
		roll:   s.roll.scale(sx, sy),
		father: s.father.scale(sx, sy),
	}
}

func (s *slots) ref(f Field) *Rect {
	switch f {
	case FieldLogo:
		return &s.logo
	case FieldPhoto:
		return &s.photo
	case FieldName:
		return &s.name
	case FieldRoll:
		return &s.roll
	case FieldFather:
		return &s.father
	default:
		return nil
	}
}

var variantMetrics = map[Variant]metrics{
	Vertical: {
		width: 224, height: 320,
		padding: 12, gap: 8, lineGap: 4,
		logo:         size{48, 48},
		photo:        size{96, 104},
		schoolHeight: 18, nameHeight: 20, lineHeight: 16, detailHeight: 14,
		textAlign: "center",
		stack:     stackVertical,
		defaults: slots{
			logo:   Rect{Top: 12, Left: 88, Width: 48, Height: 48},
			school: Rect{Top: 68, Left: 12, Width: 200, Height: 18},
			photo:  Rect{Top: 94, Left: 64, Width: 96, Height: 104},
			name:   Rect{Top: 206, Left: 12, Width: 200, Height: 20},
			roll:   Rect{Top: 230, Left: 12, Width: 200, Height: 16},
			father: Rect{Top: 250, Left: 12, Width: 200, Height: 16},
		},
	},
	Horizontal: {
		width: 320, height: 224,
		padding: 12, gap: 8, lineGap: 4,
		logo:         size{40, 40},
		photo:        size{88, 104},
		schoolHeight: 18, nameHeight: 20, lineHeight: 16, detailHeight: 14,
		textAlign: "left",
		stack:     stackHorizontal,
		defaults: slots{
			logo:   Rect{Top: 12, Left: 12, Width: 40, Height: 40},
			school: Rect{Top: 23, Left: 60, Width: 248, Height: 18},
			photo:  Rect{Top: 60, Left: 12, Width: 88, Height: 104},
			name:   Rect{Top: 60, Left: 112, Width: 196, Height: 20},
			roll:   Rect{Top: 84, Left: 112, Width: 196, Height: 16},
			father: Rect{Top: 104, Left: 112, Width: 196, Height: 16},
		},
	},
}

func metricsFor(v Variant) metrics {
	if m, ok := variantMetrics[v]; ok {
		return m
	}
	return variantMetrics[Vertical]
}

// stackVertical places logo, school name, photo and text top to bottom, centred.
func stackVertical(m metrics) slots {
	var s slots
	y := m.padding
	s.logo = Rect{Top: y, Left: (m.width - m.logo.w) / 2, Width: m.logo.w, Height: m.logo.h}
	y = s.logo.Bottom() + m.gap
	s.school = Rect{Top: y, Left: m.padding, Width: m.width - 2*m.padding, Height: m.schoolHeight}
	y = s.school.Bottom() + m.gap
	s.photo = Rect{Top: y, Left: (m.width - m.photo.w) / 2, Width: m.photo.w, Height: m.photo.h}
	y = s.photo.Bottom() + m.gap
	s.name, s.roll, s.father = textColumn(m, m.padding, y, m.width-2*m.padding)
	return s
}

// stackHorizontal places a logo + school header row, then the photo beside the text column.
func stackHorizontal(m metrics) slots {
	var s slots
	y := m.padding
	s.logo = Rect{Top: y, Left: m.padding, Width: m.logo.w, Height: m.logo.h}
	headerLeft := s.logo.Left + s.logo.Width + m.gap
	s.school = Rect{
		Top:    y + (m.logo.h-m.schoolHeight)/2,
		Left:   headerLeft,
		Width:  m.width - headerLeft - m.padding,
		Height: m.schoolHeight,
	}
	y = s.logo.Bottom() + m.gap
	s.photo = Rect{Top: y, Left: m.padding, Width: m.photo.w, Height: m.photo.h}
	textLeft := s.photo.Left + s.photo.Width + m.padding
	s.name, s.roll, s.father = textColumn(m, textLeft, y, m.width-textLeft-m.padding)
	return s
}

func textColumn(m metrics, left, top, width float64) (name, roll, father Rect) {
	name = Rect{Top: top, Left: left, Width: width, Height: m.nameHeight}
	roll = Rect{Top: name.Bottom() + m.lineGap, Left: left, Width: width, Height: m.lineHeight}
	father = Rect{Top: roll.Bottom() + m.lineGap, Left: left, Width: width, Height: m.lineHeight}
	return name, roll, father
}

// DefaultPositions returns the default rectangles of the positionable fields at native size.
func DefaultPositions(v Variant) map[Field]Rect {
	d := metricsFor(v).defaults
	out := make(map[Field]Rect, len(positionable))
	for _, f := range positionable {
		out[f] = *d.ref(f)
	}
	return out
}
