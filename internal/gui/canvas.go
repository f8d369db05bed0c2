// Read-only image views for derived artifacts and the comparison surface
package gui

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cutout-studio/internal/compose"
	"cutout-studio/internal/geometry"
)

// ImageView displays one artifact, or a hint while it does not exist
type ImageView struct {
	logger *logrus.Entry

	image       *canvas.Image
	placeholder *widget.Label
	container   *fyne.Container
}

func NewImageView(hint string, logger *logrus.Logger) *ImageView {
	iv := &ImageView{
		logger:      logger.WithField("component", "view"),
		image:       canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1))),
		placeholder: widget.NewLabel(hint),
	}
	iv.image.FillMode = canvas.ImageFillContain
	iv.image.ScaleMode = canvas.ImageScaleFastest
	iv.image.Hide()

	iv.container = container.NewStack(container.NewCenter(iv.placeholder), iv.image)
	return iv
}

func (iv *ImageView) GetContainer() fyne.CanvasObject {
	return iv.container
}

// SetMat shows mat; an empty Mat clears the view
func (iv *ImageView) SetMat(mat gocv.Mat) {
	if mat.Empty() {
		iv.Clear()
		return
	}

	img, err := mat.ToImage()
	if err != nil {
		iv.logger.WithError(err).Error("Failed to convert Mat to image")
		return
	}

	iv.image.Image = img
	iv.image.Show()
	iv.placeholder.Hide()
	iv.image.Refresh()
}

func (iv *ImageView) Clear() {
	iv.image.Image = image.NewRGBA(image.Rect(0, 0, 1, 1))
	iv.image.Hide()
	iv.placeholder.Show()
	iv.image.Refresh()
}

// CompareView shows a rendered comparison and reports the split fraction
// under the pointer while it is tapped or dragged.
type CompareView struct {
	widget.BaseWidget

	view   *ImageView
	width  int
	height int

	onSplit func(float64)
}

// NewCompareView creates a comparison view for a w x h rendering surface
func NewCompareView(w, h int, logger *logrus.Logger) *CompareView {
	cv := &CompareView{
		view:   NewImageView("Run a comparison to see it here", logger),
		width:  w,
		height: h,
	}
	cv.ExtendBaseWidget(cv)
	return cv
}

func (cv *CompareView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(cv.view.GetContainer())
}

func (cv *CompareView) SetMat(mat gocv.Mat) {
	cv.view.SetMat(mat)
}

func (cv *CompareView) Clear() {
	cv.view.Clear()
}

// SetOnSplit registers the callback receiving fractions in [0,1]
func (cv *CompareView) SetOnSplit(fn func(float64)) {
	cv.onSplit = fn
}

// SurfaceSize is the size comparisons are rendered at
func (cv *CompareView) SurfaceSize() (int, int) {
	return cv.width, cv.height
}

func (cv *CompareView) Tapped(event *fyne.PointEvent) {
	cv.split(event.Position)
}

func (cv *CompareView) Dragged(event *fyne.DragEvent) {
	cv.split(event.Position)
}

func (cv *CompareView) DragEnd() {
}

// split maps a widget position to a column of the rendered comparison,
// which the image view shows contained in the widget.
func (cv *CompareView) split(pos fyne.Position) {
	if cv.onSplit == nil {
		return
	}

	size := cv.Size()
	vp, err := geometry.ComputeViewport(cv.width, cv.height, int(size.Width), int(size.Height))
	if err != nil {
		return
	}

	x := (float64(pos.X) - float64(vp.OffsetX)) / vp.Scale
	cv.onSplit(compose.FractionFromPointer(x, cv.width))
}
