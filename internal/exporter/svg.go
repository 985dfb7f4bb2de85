package exporter

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"pvinsight/internal/format"
)

var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728"}

const (
	chartWidth     = 640
	chartHeight    = 300
	marginLeft     = 60
	marginRight    = 16
	marginTop      = 32
	marginBottom   = 56
	maxLinePoints  = 2000
	yTickCount     = 5
	chartFontStyle = `font-family="Helvetica, Arial, sans-serif"`
)

// BarChart is a single-series vertical bar chart.
type BarChart struct {
	Title      string
	YLabel     string
	Categories []string
	Values     []float64
}

// LineSeries is one named time series of a LineChart.
type LineSeries struct {
	Label  string
	Times  []time.Time
	Values []float64
}

// LineChart plots time series against a month axis.
type LineChart struct {
	Title  string
	YLabel string
	Series []LineSeries
}

type plotArea struct {
	x0, y0, w, h float64
	lo, hi       float64
}

func newPlotArea(lo, hi float64) plotArea {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		lo, hi = 0, 1
	}
	if hi == lo {
		hi = lo + 1
	}
	return plotArea{
		x0: marginLeft,
		y0: marginTop,
		w:  chartWidth - marginLeft - marginRight,
		h:  chartHeight - marginTop - marginBottom,
		lo: lo,
		hi: hi,
	}
}

func (p plotArea) y(v float64) float64 {
	return p.y0 + p.h - (v-p.lo)/(p.hi-p.lo)*p.h
}

func openSVG(b *strings.Builder, title, yLabel string) {
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="100%%" %s font-size="10">`, chartWidth, chartHeight, chartFontStyle)
	fmt.Fprintf(b, `<text x="%d" y="18" text-anchor="middle" font-size="13" font-weight="bold">%s</text>`, chartWidth/2, html.EscapeString(title))
	fmt.Fprintf(b, `<text transform="translate(14,%d) rotate(-90)" text-anchor="middle">%s</text>`, marginTop+(chartHeight-marginTop-marginBottom)/2, html.EscapeString(yLabel))
}

func (p plotArea) axes(b *strings.Builder) {
	for i := 0; i <= yTickCount; i++ {
		v := p.lo + (p.hi-p.lo)*float64(i)/yTickCount
		y := p.y(v)
		fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ddd" stroke-dasharray="3,3"/>`, p.x0, y, p.x0+p.w, y)
		fmt.Fprintf(b, `<text x="%.1f" y="%.1f" text-anchor="end">%s</text>`, p.x0-4, y+3, html.EscapeString(tickLabel(v, p.hi-p.lo)))
	}
	fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`, p.x0, p.y0+p.h, p.x0+p.w, p.y0+p.h)
	fmt.Fprintf(b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`, p.x0, p.y0, p.x0, p.y0+p.h)
}

func tickLabel(v, span float64) string {
	switch {
	case span >= 50:
		return format.Number(v, 0)
	case span >= 5:
		return format.Number(v, 1)
	default:
		return format.Number(v, 2)
	}
}

// SVG renders the chart. NaN values draw no bar.
func (c BarChart) SVG() string {
	var b strings.Builder
	openSVG(&b, c.Title, c.YLabel)

	hi := 0.0
	for _, v := range c.Values {
		if !math.IsNaN(v) && v > hi {
			hi = v
		}
	}
	p := newPlotArea(0, hi)
	p.axes(&b)

	n := len(c.Categories)
	if n > 0 {
		slot := p.w / float64(n)
		for i, cat := range c.Categories {
			x := p.x0 + slot*float64(i)
			if i < len(c.Values) && !math.IsNaN(c.Values[i]) {
				top := p.y(c.Values[i])
				fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`,
					x+slot*0.15, top, slot*0.7, p.y0+p.h-top, palette[0])
			}
			lx, ly := x+slot/2, p.y0+p.h+12
			fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="end" transform="rotate(-45 %.1f %.1f)">%s</text>`,
				lx, ly, lx, ly, html.EscapeString(cat))
		}
	}

	b.WriteString("</svg>")
	return b.String()
}

// SVG renders the chart with one polyline per series. NaN values break the
// line.
func (c LineChart) SVG() string {
	var b strings.Builder
	openSVG(&b, c.Title, c.YLabel)

	var (
		tMin, tMax time.Time
		lo, hi     = math.NaN(), math.NaN()
	)
	for _, s := range c.Series {
		for i, t := range s.Times {
			if tMin.IsZero() || t.Before(tMin) {
				tMin = t
			}
			if t.After(tMax) {
				tMax = t
			}
			if i < len(s.Values) && !math.IsNaN(s.Values[i]) {
				v := s.Values[i]
				if math.IsNaN(lo) || v < lo {
					lo = v
				}
				if math.IsNaN(hi) || v > hi {
					hi = v
				}
			}
		}
	}
	if !math.IsNaN(lo) && lo > 0 {
		lo = 0
	}
	p := newPlotArea(lo, hi)
	p.axes(&b)

	span := tMax.Sub(tMin).Seconds()
	if span <= 0 {
		span = 1
	}
	x := func(t time.Time) float64 { return p.x0 + t.Sub(tMin).Seconds()/span*p.w }

	for _, m := range monthTicks(tMin, tMax) {
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle">%s</text>`, x(m), p.y0+p.h+14, m.Format("Jan"))
	}

	for si, s := range c.Series {
		color := palette[si%len(palette)]
		stride := 1
		if len(s.Times) > maxLinePoints {
			stride = int(math.Ceil(float64(len(s.Times)) / maxLinePoints))
		}
		var pts []string
		flush := func() {
			if len(pts) > 1 {
				fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="0.8" points="%s"/>`, color, strings.Join(pts, " "))
			}
			pts = pts[:0]
		}
		for i := 0; i < len(s.Times) && i < len(s.Values); i += stride {
			v := s.Values[i]
			if math.IsNaN(v) {
				flush()
				continue
			}
			pts = append(pts, fmt.Sprintf("%.1f,%.1f", x(s.Times[i]), p.y(v)))
		}
		flush()

		if len(c.Series) > 1 {
			lx := p.x0 + p.w - 70
			ly := p.y0 + 12 + float64(si)*14
			fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"/>`, lx, ly-3, lx+16, ly-3, color)
			fmt.Fprintf(&b, `<text x="%.1f" y="%.1f">%s</text>`, lx+20, ly, html.EscapeString(s.Label))
		}
	}

	b.WriteString("</svg>")
	return b.String()
}

// monthTicks returns the first instant of every month within [lo, hi].
func monthTicks(lo, hi time.Time) []time.Time {
	if lo.IsZero() {
		return nil
	}
	m := time.Date(lo.Year(), lo.Month(), 1, 0, 0, 0, 0, lo.Location())
	if m.Before(lo) {
		m = m.AddDate(0, 1, 0)
	}
	var out []time.Time
	for !m.After(hi) {
		out = append(out, m)
		m = m.AddDate(0, 1, 0)
	}
	return out
}
