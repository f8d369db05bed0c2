// Interactive canvas widget for rectangle seed selection
package gui

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cutout-studio/internal/compose"
	"cutout-studio/internal/core"
	"cutout-studio/internal/geometry"
)

var (
	committedColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	candidateColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// InteractiveCanvas shows the loaded image letterboxed on the preview
// surface and turns pointer gestures into selection requests.
type InteractiveCanvas struct {
	widget.BaseWidget

	pipeline *core.Pipeline
	logger   *logrus.Entry

	raster *canvas.Raster

	mu      sync.Mutex
	source  gocv.Mat
	cache   *image.RGBA
	cacheVP geometry.Viewport
	cacheW  int
	cacheH  int

	lastPos fyne.Position
}

// NewInteractiveCanvas creates a new interactive canvas
func NewInteractiveCanvas(pipeline *core.Pipeline, logger *logrus.Logger) *InteractiveCanvas {
	ic := &InteractiveCanvas{
		pipeline: pipeline,
		logger:   logger.WithField("component", "canvas"),
		source:   gocv.NewMat(),
	}
	ic.raster = canvas.NewRaster(ic.render)

	ic.ExtendBaseWidget(ic)
	return ic
}

// CreateRenderer creates the renderer for the interactive canvas
func (ic *InteractiveCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &interactiveCanvasRenderer{raster: ic.raster}
}

// SetImage replaces the displayed image with a copy of mat
func (ic *InteractiveCanvas) SetImage(mat gocv.Mat) {
	ic.mu.Lock()
	old := ic.source
	ic.source = mat.Clone()
	ic.cache = nil
	ic.mu.Unlock()
	old.Close()

	ic.raster.Refresh()
}

// Close releases the displayed image
func (ic *InteractiveCanvas) Close() {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.source.Close()
	ic.cache = nil
}

// Viewport maps the loaded image onto the widget's current size
func (ic *InteractiveCanvas) Viewport() (geometry.Viewport, bool) {
	ic.mu.Lock()
	w, h := ic.source.Cols(), ic.source.Rows()
	ic.mu.Unlock()

	size := ic.Size()
	vp, err := geometry.ComputeViewport(w, h, int(size.Width), int(size.Height))
	if err != nil {
		return geometry.Viewport{}, false
	}
	return vp, true
}

// Mouse event handlers
func (ic *InteractiveCanvas) MouseDown(event *desktop.MouseEvent) {
	if event.Button != desktop.MouseButtonPrimary {
		return
	}
	ic.lastPos = event.Position
	ic.dispatch(core.PointerPress, event.Position)
}

func (ic *InteractiveCanvas) MouseUp(event *desktop.MouseEvent) {
	if event.Button != desktop.MouseButtonPrimary {
		return
	}
	// After a drag this is a no-op: DragEnd already released the gesture.
	ic.dispatch(core.PointerRelease, event.Position)
}

func (ic *InteractiveCanvas) Dragged(event *fyne.DragEvent) {
	ic.lastPos = event.Position
	ic.dispatch(core.PointerMove, event.Position)
}

func (ic *InteractiveCanvas) DragEnd() {
	ic.dispatch(core.PointerRelease, ic.lastPos)
}

func (ic *InteractiveCanvas) dispatch(phase core.PointerPhase, pos fyne.Position) {
	vp, ok := ic.Viewport()
	if !ok {
		return
	}

	req := core.PointerRequest{
		Phase:    phase,
		Position: geometry.Point{X: float64(pos.X), Y: float64(pos.Y)},
		Viewport: vp,
	}
	if err := ic.pipeline.Dispatch(context.Background(), req); err != nil {
		ic.logger.WithError(err).Debug("Pointer request rejected")
	}
	ic.raster.Refresh()
}

// render draws the letterboxed image and the selection outline at pixel
// size w x h
func (ic *InteractiveCanvas) render(w, h int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	base, vp, ok := ic.letterboxed(w, h)
	if !ok {
		return out
	}
	draw.Draw(out, out.Bounds(), base, image.Point{}, draw.Src)

	sel := ic.pipeline.Selection()
	if rect, dragging := sel.Candidate(); dragging {
		drawRectangleOverlay(out, vp.ImageRectToDisplay(rect), candidateColor)
	} else if rect, ok := sel.Rect(); ok {
		drawRectangleOverlay(out, vp.ImageRectToDisplay(rect), committedColor)
	}
	return out
}

func (ic *InteractiveCanvas) letterboxed(w, h int) (*image.RGBA, geometry.Viewport, bool) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if ic.source.Empty() || w <= 0 || h <= 0 {
		return nil, geometry.Viewport{}, false
	}
	if ic.cache != nil && ic.cacheW == w && ic.cacheH == h {
		return ic.cache, ic.cacheVP, true
	}

	boxed, vp, err := compose.Letterbox(ic.source, w, h)
	if err != nil {
		ic.logger.WithError(err).Error("Failed to letterbox image")
		return nil, geometry.Viewport{}, false
	}
	defer boxed.Close()

	img, err := boxed.ToImage()
	if err != nil {
		ic.logger.WithError(err).Error("Failed to convert Mat to image")
		return nil, geometry.Viewport{}, false
	}

	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	ic.cache, ic.cacheVP, ic.cacheW, ic.cacheH = rgba, vp, w, h
	return rgba, vp, true
}

// drawRectangleOverlay draws a two pixel outline of rect
func drawRectangleOverlay(overlay *image.RGBA, rect image.Rectangle, col color.RGBA) {
	rect = rect.Intersect(overlay.Bounds())
	if rect.Empty() {
		return
	}

	for i := 0; i < 2; i++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			overlay.SetRGBA(x, rect.Min.Y+i, col)
			overlay.SetRGBA(x, rect.Max.Y-1-i, col)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			overlay.SetRGBA(rect.Min.X+i, y, col)
			overlay.SetRGBA(rect.Max.X-1-i, y, col)
		}
	}
}

// interactiveCanvasRenderer is the renderer for the interactive canvas
type interactiveCanvasRenderer struct {
	raster *canvas.Raster
}

func (r *interactiveCanvasRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
}

func (r *interactiveCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

func (r *interactiveCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.raster}
}

func (r *interactiveCanvasRenderer) Refresh() {
	r.raster.Refresh()
}

func (r *interactiveCanvasRenderer) Destroy() {
}
