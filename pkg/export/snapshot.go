package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/vanderheijden86/polycheck/pkg/layer"
	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/scene"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// MeshLookup resolves an entity to its geometry. *scene.Scene implements it.
type MeshLookup interface {
	Mesh(e model.Entity) (*scene.Mesh, bool)
}

// View selects the orthographic projection used for snapshots.
type View string

const (
	ViewFront View = "front" // looking down -Z
	ViewTop   View = "top"   // looking down -Y
	ViewSide  View = "side"  // looking down -X
)

// SnapshotOptions controls layer snapshot export behaviour.
type SnapshotOptions struct {
	Path      string          // Output path; format inferred from extension when Format empty
	Format    string          // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title     string          // Optional title for the header block
	View      View            // Projection; defaults to ViewFront
	Meshes    MeshLookup      // Geometry source
	Layer     *layer.Layer    // Bound visualization layer; nil colours by partition
	Partition model.Partition // Partition that was bound
}

// SaveSnapshot renders every entity of the partition as a flat projection,
// filled with the shader its collection assigns, plus a header and legend.
func SaveSnapshot(opts SnapshotOptions) error {
	defer metrics.Timer(metrics.Export)()

	if opts.Partition.Len() == 0 {
		return fmt.Errorf("no entities to export")
	}
	if opts.Meshes == nil {
		return fmt.Errorf("mesh lookup is required for snapshot export")
	}

	format, path, err := resolveFormat(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	opts.Path = path

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildSnapshotLayout(opts)

	switch format {
	case "svg":
		return renderSVG(opts.Path, layout)
	case "png":
		return renderPNG(opts.Path, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

func resolveFormat(format, path string) (string, string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if path != "" && filepath.Ext(path) == "" {
				path = path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return "", "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if path == "" {
		return "", "", fmt.Errorf("output path is required")
	}
	return format, path, nil
}

// --- layout computation ----------------------------------------------------

const (
	tileW      = 180.0
	tileH      = 200.0
	tileGap    = 16.0
	tilePad    = 14.0
	labelH     = 36.0
	headerH    = 140.0
	maxColumns = 5
)

type point struct{ X, Y float64 }

type snapshotTile struct {
	Entity  model.Entity
	X, Y    float64
	Polys   [][]point // back to front
	Fill    color.RGBA
	Count   int
	Invalid bool
	Missing bool
}

type snapshotLayout struct {
	Tiles   []snapshotTile
	Width   int
	Height  int
	Summary snapshotSummary
}

type snapshotSummary struct {
	Title   string
	Metric  model.MetricKind
	Limit   int
	Valid   int
	Invalid int
	Layer   string
	View    View
}

func buildSnapshotLayout(opts SnapshotOptions) snapshotLayout {
	p := opts.Partition
	view := opts.View
	if view == "" {
		view = ViewFront
	}

	entities := make([]model.Entity, 0, p.Len())
	entities = append(entities, p.Valid...)
	entities = append(entities, p.Invalid...)

	cols := min(len(entities), maxColumns)
	rows := (len(entities) + cols - 1) / cols

	layout := snapshotLayout{
		Width:  int(2*tileGap + float64(cols)*tileW + float64(cols-1)*tileGap),
		Height: int(headerH + float64(rows)*(tileH+tileGap) + tileGap),
	}
	// Keep room for the header and legend side by side.
	layout.Width = max(layout.Width, 640)

	title := opts.Title
	if title == "" {
		title = fmt.Sprintf("Poly count: %s", p.Metric.Label())
	}
	layout.Summary = snapshotSummary{
		Title:   title,
		Metric:  p.Metric,
		Limit:   p.Limit,
		Valid:   len(p.Valid),
		Invalid: len(p.Invalid),
		View:    view,
	}
	if opts.Layer != nil {
		layout.Summary.Layer = opts.Layer.Name
	}

	for i, e := range entities {
		col, row := i%cols, i/cols
		t := snapshotTile{
			Entity:  e,
			X:       tileGap + float64(col)*(tileW+tileGap),
			Y:       headerH + float64(row)*(tileH+tileGap),
			Fill:    fillFor(opts.Layer, p, e),
			Invalid: p.IsInvalid(e),
		}
		mesh, ok := opts.Meshes.Mesh(e)
		if !ok {
			t.Missing = true
		} else {
			t.Count = mesh.Counts().Of(p.Metric)
			t.Polys = projectMesh(mesh, view, t.X, t.Y, tileW, tileH-labelH)
		}
		layout.Tiles = append(layout.Tiles, t)
	}
	return layout
}

// fillFor uses the layer's shader when the entity is in one of its
// collections, the partition side otherwise.
func fillFor(l *layer.Layer, p model.Partition, e model.Entity) color.RGBA {
	if l != nil {
		if sh := l.ShaderFor(e); sh != nil {
			return sh.RGBA()
		}
		return colorUntagged
	}
	if p.IsInvalid(e) {
		return colorInvalid
	}
	return colorValid
}

// project maps a position to (u, v, depth) for a view. Larger depth is
// closer to the camera.
func project(v r3.Vector, view View) (float64, float64, float64) {
	switch view {
	case ViewTop:
		return v.X, -v.Z, v.Y
	case ViewSide:
		return -v.Z, v.Y, v.X
	default:
		return v.X, v.Y, v.Z
	}
}

// projectMesh fits the mesh into the box at (x, y) and returns its faces as
// screen polygons sorted far to near.
func projectMesh(m *scene.Mesh, view View, x, y, w, h float64) [][]point {
	if len(m.Positions) == 0 || len(m.Faces) == 0 {
		return nil
	}

	uv := make([]point, len(m.Positions))
	depth := make([]float64, len(m.Positions))
	minU, minV := math.Inf(1), math.Inf(1)
	maxU, maxV := math.Inf(-1), math.Inf(-1)
	for i, pos := range m.Positions {
		u, v, d := project(pos, view)
		uv[i] = point{u, v}
		depth[i] = d
		minU, maxU = math.Min(minU, u), math.Max(maxU, u)
		minV, maxV = math.Min(minV, v), math.Max(maxV, v)
	}

	spanU, spanV := maxU-minU, maxV-minV
	availW, availH := w-2*tilePad, h-2*tilePad
	scale := 1.0
	switch {
	case spanU > 0 && spanV > 0:
		scale = math.Min(availW/spanU, availH/spanV)
	case spanU > 0:
		scale = availW / spanU
	case spanV > 0:
		scale = availH / spanV
	}
	// Centre the projection in the box; screen Y grows downwards.
	offU := x + tilePad + (availW-spanU*scale)/2
	offV := y + tilePad + (availH-spanV*scale)/2

	type face struct {
		pts   []point
		depth float64
	}
	faces := make([]face, 0, len(m.Faces))
	for _, f := range m.Faces {
		if len(f) < 3 {
			continue
		}
		pts := make([]point, len(f))
		sum := 0.0
		for i, idx := range f {
			p := uv[idx]
			pts[i] = point{
				X: offU + (p.X-minU)*scale,
				Y: offV + (maxV-p.Y)*scale,
			}
			sum += depth[idx]
		}
		faces = append(faces, face{pts: pts, depth: sum / float64(len(f))})
	}
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].depth < faces[j].depth })

	out := make([][]point, len(faces))
	for i, f := range faces {
		out[i] = f.pts
	}
	return out
}

// --- rendering -------------------------------------------------------------

var (
	colorValid    = color.RGBA{0x00, 0xff, 0x00, 0xff}
	colorInvalid  = color.RGBA{0xff, 0x00, 0x00, 0xff}
	colorUntagged = color.RGBA{0xb0, 0xb0, 0xb0, 0xff}
	colorMissing  = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorWire     = color.RGBA{0x33, 0x33, 0x33, 0xff}
	colorTileBG   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorOverBG   = color.RGBA{0x64, 0x00, 0x00, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorLegendBG = color.RGBA{0xee, 0xee, 0xee, 0xff}
)

func renderPNG(path string, layout snapshotLayout) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	// header
	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, headerH-32, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawSummaryBlock(dc, layout)
	drawLegend(dc, layout)

	for _, t := range layout.Tiles {
		drawTile(dc, t)
	}

	return dc.SavePNG(path)
}

func renderSVG(path string, layout snapshotLayout) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderSVGToWriter(file, layout)
}

func renderSVGToWriter(w io.Writer, layout snapshotLayout) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(headerH-32), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	drawSummaryBlockSVG(canvas, layout)
	drawLegendSVG(canvas, layout)

	for _, t := range layout.Tiles {
		x, y := int(t.X), int(t.Y)
		canvas.Gid(string(t.Entity))
		canvas.Roundrect(x, y, int(tileW), int(tileH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(tileBackground(t)), css(colorStroke)))
		if t.Missing {
			canvas.Rect(x+int(tilePad), y+int(tilePad), int(tileW-2*tilePad), int(tileH-labelH-2*tilePad),
				fmt.Sprintf("fill:%s", css(colorMissing)))
		}
		for _, poly := range t.Polys {
			xs, ys := make([]int, len(poly)), make([]int, len(poly))
			for i, p := range poly {
				xs[i], ys[i] = int(math.Round(p.X)), int(math.Round(p.Y))
			}
			canvas.Polygon(xs, ys, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:0.6", css(t.Fill), css(colorWire)))
		}
		canvas.Text(x+10, y+int(tileH-labelH)+14, truncate(string(t.Entity), 22),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;font-weight:bold", css(tileText(t))))
		canvas.Text(x+10, y+int(tileH-labelH)+30, tileCaption(t),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(tileText(t))))
		canvas.Gend()
	}

	canvas.End()
	return nil
}

func drawTile(dc *gg.Context, t snapshotTile) {
	dc.SetColor(tileBackground(t))
	dc.DrawRoundedRectangle(t.X, t.Y, tileW, tileH, 8)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(t.X, t.Y, tileW, tileH, 8)
	dc.Stroke()

	if t.Missing {
		dc.SetColor(colorMissing)
		dc.DrawRectangle(t.X+tilePad, t.Y+tilePad, tileW-2*tilePad, tileH-labelH-2*tilePad)
		dc.Fill()
	}

	dc.SetLineWidth(0.6)
	for _, poly := range t.Polys {
		dc.NewSubPath()
		for i, p := range poly {
			if i == 0 {
				dc.MoveTo(p.X, p.Y)
			} else {
				dc.LineTo(p.X, p.Y)
			}
		}
		dc.ClosePath()
		dc.SetColor(t.Fill)
		dc.FillPreserve()
		dc.SetColor(colorWire)
		dc.Stroke()
	}

	dc.SetColor(tileText(t))
	dc.DrawStringAnchored(truncate(string(t.Entity), 22), t.X+10, t.Y+tileH-labelH+10, 0, 0.5)
	dc.DrawStringAnchored(tileCaption(t), t.X+10, t.Y+tileH-labelH+26, 0, 0.5)
}

func tileBackground(t snapshotTile) color.RGBA {
	if t.Invalid {
		return colorOverBG
	}
	return colorTileBG
}

func tileText(t snapshotTile) color.RGBA {
	if t.Invalid {
		return colorTileBG
	}
	return colorText
}

func tileCaption(t snapshotTile) string {
	if t.Missing {
		return "missing from scene"
	}
	return fmt.Sprintf("count %d", t.Count)
}

func summaryLines(layout snapshotLayout) []string {
	s := layout.Summary
	lines := []string{
		fmt.Sprintf("metric: %s  limit: %d", s.Metric, s.Limit),
		fmt.Sprintf("valid: %d  invalid: %d", s.Valid, s.Invalid),
		fmt.Sprintf("view: %s", s.View),
	}
	if s.Layer != "" {
		lines = append(lines, fmt.Sprintf("layer: %s", s.Layer))
	}
	return lines
}

func drawSummaryBlock(dc *gg.Context, layout snapshotLayout) {
	dc.SetColor(colorText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, line := range summaryLines(layout) {
		dc.DrawStringAnchored(line, 32, 60+float64(i)*16, 0, 0.5)
	}
}

func drawLegend(dc *gg.Context, layout snapshotLayout) {
	boxW := 200.0
	boxH := 84.0
	x := float64(layout.Width) - boxW - 28
	y := 24.0
	dc.SetColor(colorLegendBG)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(x, y, boxW, boxH, 10)
	dc.Stroke()

	dc.SetColor(colorText)
	dc.DrawStringAnchored("Legend", x+12, y+18, 0, 0.5)
	drawLegendRow(dc, x+12, y+36, colorValid, "valid (under limit)")
	drawLegendRow(dc, x+12, y+52, colorInvalid, "invalid (at or over)")
	drawLegendRow(dc, x+12, y+68, colorUntagged, "not in layer")
}

func drawLegendRow(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(x, y-8, 14, 14, 3)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(label, x+20, y, 0, 0.5)
}

func drawSummaryBlockSVG(canvas *svg.SVG, layout snapshotLayout) {
	canvas.Text(32, 44, layout.Summary.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, line := range summaryLines(layout) {
		canvas.Text(32, 64+i*18, line, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	}
}

func drawLegendSVG(canvas *svg.SVG, layout snapshotLayout) {
	boxW := 200
	boxH := 84
	x := layout.Width - boxW - 28
	y := 24
	canvas.Roundrect(x, y, boxW, boxH, 10, 10, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorLegendBG), css(colorStroke)))
	canvas.Text(x+12, y+18, "Legend", fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
	drawLegendRowSVG(canvas, x+12, y+36, colorValid, "valid (under limit)")
	drawLegendRowSVG(canvas, x+12, y+52, colorInvalid, "invalid (at or over)")
	drawLegendRowSVG(canvas, x+12, y+68, colorUntagged, "not in layer")
}

func drawLegendRowSVG(canvas *svg.SVG, x, y int, c color.RGBA, label string) {
	canvas.Roundrect(x, y-8, 14, 14, 3, 3, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(c), css(colorStroke)))
	canvas.Text(x+20, y+4, label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
