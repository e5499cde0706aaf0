package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/webp"

	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

const (
	pxToPt      = 0.75
	sheetMargin = 24.0
	sheetGap    = 12.0
)

// ImageLoader resolves an element source to image bytes and a MIME type.
type ImageLoader interface {
	Load(ctx context.Context, source string) ([]byte, string, error)
}

// ImageLoaderFunc adapts a function to ImageLoader.
type ImageLoaderFunc func(ctx context.Context, source string) ([]byte, string, error)

func (f ImageLoaderFunc) Load(ctx context.Context, source string) ([]byte, string, error) {
	return f(ctx, source)
}

// CardPDF prints compositions onto A4 sheets, packed left to right then top to bottom.
// Images that cannot be loaded or decoded are drawn as their placeholder.
type CardPDF struct{}

func NewCardPDF() *CardPDF { return &CardPDF{} }

func (r *CardPDF) Render(ctx context.Context, cards []idcard.Composition, loader ImageLoader) ([]byte, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("no cards to render")
	}

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(sheetMargin, sheetMargin, sheetMargin)
	pdf.SetAutoPageBreak(false, 0)
	pageW, pageH := pdf.GetPageSize()

	p := &cardPainter{ctx: ctx, pdf: pdf, loader: loader, tr: pdf.UnicodeTranslatorFromDescriptor(""), images: map[string]*gofpdf.ImageInfoType{}}

	x, y, rowH := sheetMargin, sheetMargin, 0.0
	pdf.AddPage()
	for i, card := range cards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, h := card.Width*pxToPt, card.Height*pxToPt
		if x+w > pageW-sheetMargin && x > sheetMargin {
			x, y, rowH = sheetMargin, y+rowH+sheetGap, 0
		}
		if y+h > pageH-sheetMargin && y > sheetMargin {
			pdf.AddPage()
			x, y, rowH = sheetMargin, sheetMargin, 0
		}

		p.card(card, x, y)
		if pdf.Err() {
			return nil, fmt.Errorf("render card %d: %w", i, pdf.Error())
		}

		x += w + sheetGap
		if h > rowH {
			rowH = h
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render card pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type cardPainter struct {
	ctx    context.Context
	pdf    *gofpdf.Fpdf
	loader ImageLoader
	tr     func(string) string
	images map[string]*gofpdf.ImageInfoType
	seq    int
}

func (p *cardPainter) card(card idcard.Composition, originX, originY float64) {
	pdf := p.pdf
	pdf.ClipRect(originX, originY, card.Width*pxToPt, card.Height*pxToPt, false)
	for _, el := range card.Elements {
		x, y := originX+el.Rect.Left*pxToPt, originY+el.Rect.Top*pxToPt
		w, h := el.Rect.Width*pxToPt, el.Rect.Height*pxToPt
		switch el.Kind {
		case idcard.KindGradient:
			r1, g1, b1 := hexRGB(el.Color)
			r2, g2, b2 := hexRGB(el.ColorTo)
			pdf.LinearGradient(x, y, w, h, r1, g1, b1, r2, g2, b2, 0, 1, 0, 0)
		case idcard.KindImage:
			if !p.image(el, x, y, w, h) {
				p.placeholder(el, x, y, w, h)
			}
		case idcard.KindPlaceholder:
			p.placeholder(el, x, y, w, h)
		case idcard.KindText:
			p.text(el, x, y, w, h)
		}
	}
	pdf.ClipEnd()

	pdf.SetDrawColor(209, 213, 219)
	pdf.SetLineWidth(0.5)
	pdf.Rect(originX, originY, card.Width*pxToPt, card.Height*pxToPt, "D")
}

func (p *cardPainter) placeholder(el idcard.Element, x, y, w, h float64) {
	color := el.Color
	if color == "" {
		color = idcard.LightTheme.Placeholder
	}
	r, g, b := hexRGB(color)
	p.pdf.SetFillColor(r, g, b)
	if el.Shape == idcard.ShapeCircle {
		radius := minFloat(w, h) / 2
		p.pdf.Circle(x+w/2, y+h/2, radius, "F")
		return
	}
	p.pdf.Rect(x, y, w, h, "F")
}

// image draws el with cover fit, clipped to its shape. It reports false when
// the source could not be loaded or is in a format the PDF writer cannot embed.
func (p *cardPainter) image(el idcard.Element, x, y, w, h float64) bool {
	info, name := p.register(el.Source)
	if info == nil || info.Width() <= 0 || info.Height() <= 0 {
		return false
	}

	scale := w / info.Width()
	if s := h / info.Height(); s > scale {
		scale = s
	}
	dw, dh := info.Width()*scale, info.Height()*scale

	if el.Shape == idcard.ShapeCircle {
		p.pdf.ClipCircle(x+w/2, y+h/2, minFloat(w, h)/2, false)
	} else {
		p.pdf.ClipRect(x, y, w, h, false)
	}
	p.pdf.ImageOptions(name, x+(w-dw)/2, y+(h-dh)/2, dw, dh, false, gofpdf.ImageOptions{}, 0, "")
	p.pdf.ClipEnd()
	return true
}

func (p *cardPainter) register(source string) (*gofpdf.ImageInfoType, string) {
	if source == "" || p.loader == nil {
		return nil, ""
	}
	name := "img:" + source
	if info, ok := p.images[name]; ok {
		return info, name
	}

	p.images[name] = nil
	data, contentType, err := p.loader.Load(p.ctx, source)
	if err != nil || len(data) == 0 {
		return nil, ""
	}
	data, imageType := pdfImage(data, contentType)
	if imageType == "" {
		return nil, ""
	}

	info := p.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
	if p.pdf.Err() {
		p.pdf.ClearError()
		return nil, ""
	}
	p.images[name] = info
	return info, name
}

func (p *cardPainter) text(el idcard.Element, x, y, w, h float64) {
	style := ""
	if el.Bold {
		style = "B"
	}
	r, g, b := hexRGB(el.Color)
	p.pdf.SetFont("Arial", style, el.FontSize*pxToPt)
	p.pdf.SetTextColor(r, g, b)

	align := "C"
	if el.Align == "left" {
		align = "L"
	}
	p.pdf.SetXY(x, y)
	p.pdf.CellFormat(w, h, p.tr(el.Text), "", 0, align+"M", false, 0, "")
}

// pdfImage maps an uploaded image to bytes and a type gofpdf can embed.
// WebP has no PDF filter, so it is transcoded to PNG.
func pdfImage(data []byte, contentType string) ([]byte, string) {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/png":
		return data, "PNG"
	case "image/jpeg", "image/jpg":
		return data, "JPG"
	case "image/gif":
		return data, "GIF"
	case "image/webp":
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, ""
		}
		buf := &bytes.Buffer{}
		if err := png.Encode(buf, img); err != nil {
			return nil, ""
		}
		return buf.Bytes(), "PNG"
	default:
		return nil, ""
	}
}

// hexRGB parses #rrggbb. Malformed input yields black.
func hexRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
