// Control panel with the segmentation, threshold, resize and comparison tools
package gui

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"cutout-studio/internal/algorithms"
	"cutout-studio/internal/compose"
	"cutout-studio/internal/config"
	"cutout-studio/internal/core"
	"cutout-studio/internal/segmentation"
)

// comparable artifacts, in the order offered to the user
var compareTargets = []core.Artifact{
	core.ArtifactThreshold,
	core.ArtifactThresholdMask,
	core.ArtifactCutout,
	core.ArtifactMask,
	core.ArtifactResized,
}

// ControlPanel holds every tool that issues requests to the pipeline
type ControlPanel struct {
	pipeline *core.Pipeline
	cfg      *config.Config
	logger   *logrus.Entry

	// report routes request errors to the status bar or an error dialog
	report func(error)

	container *container.AppTabs

	// Segmentation
	backendSelect   *widget.Select
	iterSlider      *widget.Slider
	iterLabel       *widget.Label
	backgroundEntry *widget.Entry
	runButton       *widget.Button
	resetButton     *widget.Button
	progress        *widget.ProgressBarInfinite

	// Threshold
	thresholdForm *ParameterForm
	maskForm      *ParameterForm

	// Resize
	widthSlider  *widget.Slider
	heightSlider *widget.Slider
	widthLabel   *widget.Label
	heightLabel  *widget.Label
	aspectCheck  *widget.Check
	imageWidth   int
	imageHeight  int
	syncing      bool

	// Comparison
	compareSelect *widget.Select
	splitSlider   *widget.Slider
	splitLabel    *widget.Label
	surfaceSize   func() (int, int)

	enabled []fyne.Disableable
}

func NewControlPanel(pipeline *core.Pipeline, cfg *config.Config, report func(error), logger *logrus.Logger) *ControlPanel {
	cp := &ControlPanel{
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.WithField("component", "controls"),
		report:   report,
		surfaceSize: func() (int, int) {
			return cfg.Window.PreviewWidth, cfg.Window.PreviewHeight
		},
	}

	cp.initializeUI()
	cp.Disable()
	return cp
}

func (cp *ControlPanel) initializeUI() {
	cp.container = container.NewAppTabs(
		container.NewTabItem("Cutout", container.NewVScroll(cp.createSegmentSection())),
		container.NewTabItem("Threshold", container.NewVScroll(cp.createThresholdSection())),
		container.NewTabItem("Resize", container.NewVScroll(cp.createResizeSection())),
		container.NewTabItem("Compare", container.NewVScroll(cp.createCompareSection())),
	)
}

func (cp *ControlPanel) createSegmentSection() fyne.CanvasObject {
	var backends []string
	for _, kind := range []segmentation.Kind{segmentation.KindRectSeededCut, segmentation.KindDenseMatte} {
		if cp.pipeline.HasBackend(kind) {
			backends = append(backends, kind.String())
		}
	}
	cp.backendSelect = widget.NewSelect(backends, nil)
	if cp.pipeline.HasBackend(cp.cfg.BackendKind()) {
		cp.backendSelect.SetSelected(cp.cfg.BackendKind().String())
	} else {
		cp.backendSelect.SetSelected(segmentation.KindRectSeededCut.String())
	}

	cp.iterSlider = widget.NewSlider(segmentation.MinIterations, segmentation.MaxIterations)
	cp.iterSlider.Step = 1
	cp.iterSlider.SetValue(float64(cp.cfg.Segmentation.Iterations))
	cp.iterLabel = widget.NewLabel(fmt.Sprintf("%.0f", cp.iterSlider.Value))
	cp.iterSlider.OnChanged = func(value float64) {
		cp.iterLabel.SetText(fmt.Sprintf("%.0f", value))
	}

	cp.backgroundEntry = widget.NewEntry()
	cp.backgroundEntry.SetText(cp.cfg.Segmentation.Background)
	cp.backgroundEntry.Validator = func(s string) error {
		_, err := config.ParseColor(s)
		return err
	}
	cp.backgroundEntry.OnSubmitted = func(s string) {
		c, err := config.ParseColor(s)
		if err != nil {
			cp.report(err)
			return
		}
		cp.SetBackground(c)
	}

	cp.runButton = widget.NewButton("Extract Foreground", cp.runSegmentation)
	cp.runButton.Importance = widget.HighImportance
	cp.resetButton = widget.NewButton("Reset Selection", cp.resetSelection)

	cp.progress = widget.NewProgressBarInfinite()
	cp.progress.Stop()
	cp.progress.Hide()

	cp.enabled = append(cp.enabled, cp.backendSelect, cp.iterSlider, cp.backgroundEntry, cp.runButton, cp.resetButton)

	return container.NewVBox(
		widget.NewLabel("Drag a rectangle around the subject on the Original view."),
		widget.NewSeparator(),
		widget.NewLabel("Backend:"),
		cp.backendSelect,
		widget.NewLabel("Iterations:"),
		container.NewBorder(nil, nil, nil, cp.iterLabel, cp.iterSlider),
		widget.NewLabel("Background color:"),
		cp.backgroundEntry,
		widget.NewSeparator(),
		cp.runButton,
		cp.resetButton,
		cp.progress,
	)
}

func (cp *ControlPanel) createThresholdSection() fyne.CanvasObject {
	var err error
	cp.thresholdForm, err = NewParameterForm("threshold", map[string]interface{}{
		"threshold": cp.cfg.Threshold.Value,
		"max_value": cp.cfg.Threshold.MaxValue,
		"mode":      cp.cfg.Threshold.Mode,
	}, func(params map[string]interface{}) {
		cp.dispatch(core.AlgorithmRequest{Algorithm: "threshold", Params: params})
		cp.refreshComparison(core.ArtifactThreshold)
	})
	if err != nil {
		cp.logger.WithError(err).Error("Failed to build threshold controls")
		return widget.NewLabel(err.Error())
	}

	maskMode := algorithms.ThresholdBinary
	if algorithms.IsMaskMode(cp.cfg.ThresholdMode()) {
		maskMode = cp.cfg.ThresholdMode()
	}
	cp.maskForm, err = NewParameterForm("threshold_mask", map[string]interface{}{
		"threshold": cp.cfg.Threshold.Value,
		"mode":      maskMode.String(),
	}, func(params map[string]interface{}) {
		cp.dispatch(core.AlgorithmRequest{Algorithm: "threshold_mask", Params: params})
		cp.refreshComparison(core.ArtifactThresholdMask)
	})
	if err != nil {
		cp.logger.WithError(err).Error("Failed to build threshold mask controls")
		return widget.NewLabel(err.Error())
	}

	applyMask := widget.NewButton("Apply Threshold Mask", cp.maskForm.Apply)
	cp.enabled = append(cp.enabled, applyMask)
	cp.enabled = append(cp.enabled, cp.thresholdForm.Widgets()...)
	cp.enabled = append(cp.enabled, cp.maskForm.Widgets()...)

	return container.NewVBox(
		widget.NewCard("Threshold", "", cp.thresholdForm.GetContainer()),
		widget.NewCard("Threshold Mask", "Keep pixels that pass the threshold", container.NewVBox(
			cp.maskForm.GetContainer(),
			applyMask,
		)),
	)
}

func (cp *ControlPanel) createResizeSection() fyne.CanvasObject {
	cp.widthSlider = widget.NewSlider(1, algorithms.MaxResizeWidth)
	cp.widthSlider.Step = 1
	cp.heightSlider = widget.NewSlider(1, algorithms.MaxResizeHeight)
	cp.heightSlider.Step = 1
	cp.widthLabel = widget.NewLabel("0")
	cp.heightLabel = widget.NewLabel("0")

	cp.aspectCheck = widget.NewCheck("Keep aspect ratio", func(bool) {
		cp.onWidthChanged(cp.widthSlider.Value)
	})
	cp.aspectCheck.SetChecked(true)

	cp.widthSlider.OnChanged = cp.onWidthChanged
	cp.heightSlider.OnChanged = cp.onHeightChanged

	cp.enabled = append(cp.enabled, cp.widthSlider, cp.heightSlider, cp.aspectCheck)

	return container.NewVBox(
		widget.NewLabel("Width:"),
		container.NewBorder(nil, nil, nil, cp.widthLabel, cp.widthSlider),
		widget.NewLabel("Height:"),
		container.NewBorder(nil, nil, nil, cp.heightLabel, cp.heightSlider),
		cp.aspectCheck,
	)
}

func (cp *ControlPanel) createCompareSection() fyne.CanvasObject {
	names := make([]string, len(compareTargets))
	for i, a := range compareTargets {
		names[i] = a.String()
	}
	cp.compareSelect = widget.NewSelect(names, nil)
	cp.compareSelect.SetSelected(core.ArtifactThreshold.String())
	cp.compareSelect.OnChanged = func(string) {
		cp.compare()
	}

	cp.splitSlider = widget.NewSlider(0, 100)
	cp.splitSlider.SetValue(cp.cfg.Compare.Split * 100)
	cp.splitLabel = widget.NewLabel(fmt.Sprintf("%.0f%%", cp.splitSlider.Value))
	cp.splitSlider.OnChanged = func(value float64) {
		cp.splitLabel.SetText(fmt.Sprintf("%.0f%%", value))
		cp.compare()
	}

	cp.enabled = append(cp.enabled, cp.compareSelect, cp.splitSlider)

	return container.NewVBox(
		widget.NewLabel("Compare the original (left) against:"),
		cp.compareSelect,
		widget.NewLabel("Split position:"),
		container.NewBorder(nil, nil, nil, cp.splitLabel, cp.splitSlider),
		widget.NewLabel("Drag on the Comparison view to move the split."),
	)
}

func (cp *ControlPanel) runSegmentation() {
	kind, err := segmentation.ParseKind(cp.backendSelect.Selected)
	if err != nil {
		cp.report(err)
		return
	}

	req := core.SegmentRequest{
		Backend:    kind,
		Iterations: int(cp.iterSlider.Value),
	}

	cp.runButton.Disable()
	cp.progress.Show()
	cp.progress.Start()

	cp.pipeline.Submit(context.Background(), req, func(err error) {
		fyne.Do(func() {
			cp.progress.Stop()
			cp.progress.Hide()
			cp.runButton.Enable()

			// hard failures already reach the pipeline's error callback
			if err != nil && core.IsNotice(err) {
				cp.report(err)
			}
		})
	})
}

func (cp *ControlPanel) resetSelection() {
	cp.dispatch(core.ResetSelectionRequest{})
}

// SetBackground changes the color segmentations are composited over
func (cp *ControlPanel) SetBackground(c color.RGBA) {
	cp.pipeline.SetBackground(compose.SolidColor(c))
	cp.logger.WithField("background", fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)).Info("Background changed")
}

func (cp *ControlPanel) onWidthChanged(value float64) {
	if cp.syncing || cp.imageWidth == 0 {
		return
	}
	if cp.aspectCheck.Checked {
		cp.lockAspect(int(value), algorithms.HeightForWidth(cp.imageWidth, cp.imageHeight, int(value)))
	}
	cp.resize()
}

func (cp *ControlPanel) onHeightChanged(value float64) {
	if cp.syncing || cp.imageWidth == 0 {
		return
	}
	if cp.aspectCheck.Checked {
		cp.lockAspect(algorithms.WidthForHeight(cp.imageWidth, cp.imageHeight, int(value)), int(value))
	}
	cp.resize()
}

// lockAspect fits w x h into the resize limits and moves both sliders to
// the fitted pair
func (cp *ControlPanel) lockAspect(w, h int) {
	if w > algorithms.MaxResizeWidth {
		w = algorithms.MaxResizeWidth
		h = algorithms.HeightForWidth(cp.imageWidth, cp.imageHeight, w)
	}
	if h > algorithms.MaxResizeHeight {
		h = algorithms.MaxResizeHeight
		w = algorithms.WidthForHeight(cp.imageWidth, cp.imageHeight, h)
	}
	cp.setSlider(cp.widthSlider, float64(w))
	cp.setSlider(cp.heightSlider, float64(h))
}

// setSlider moves a slider without re-entering the resize handlers
func (cp *ControlPanel) setSlider(s *widget.Slider, v float64) {
	cp.syncing = true
	s.SetValue(v)
	cp.syncing = false
}

// resize runs the registry resize on the exact slider pair; the aspect
// lock has already synced the sliders
func (cp *ControlPanel) resize() {
	w, h := int(cp.widthSlider.Value), int(cp.heightSlider.Value)
	cp.widthLabel.SetText(fmt.Sprintf("%d", w))
	cp.heightLabel.SetText(fmt.Sprintf("%d", h))

	cp.dispatch(core.AlgorithmRequest{
		Algorithm: "resize",
		Params: map[string]interface{}{
			"width":       float64(w),
			"height":      float64(h),
			"keep_aspect": false,
		},
	})
	cp.refreshComparison(core.ArtifactResized)
}

// SetSurfaceSize sets the callback reporting the comparison surface size
func (cp *ControlPanel) SetSurfaceSize(fn func() (int, int)) {
	cp.surfaceSize = fn
}

// SetSplit moves the comparison split, as when the comparison view is dragged
func (cp *ControlPanel) SetSplit(fraction float64) {
	cp.splitSlider.SetValue(fraction * 100)
}

func (cp *ControlPanel) compareTarget() (core.Artifact, bool) {
	a, err := core.ParseArtifact(cp.compareSelect.Selected)
	return a, err == nil
}

func (cp *ControlPanel) compare() {
	target, ok := cp.compareTarget()
	if !ok || !cp.pipeline.Session().HasArtifact(target) {
		return
	}

	w, h := cp.surfaceSize()
	cp.dispatch(core.CompareRequest{
		Against:  target,
		Fraction: cp.splitSlider.Value / 100,
		Width:    w,
		Height:   h,
	})
}

// refreshComparison re-renders the comparison when its target changed
func (cp *ControlPanel) refreshComparison(changed core.Artifact) {
	if target, ok := cp.compareTarget(); ok && target == changed {
		cp.compare()
	}
}

// ArtifactUpdated is called on the UI goroutine after the pipeline publishes a
func (cp *ControlPanel) ArtifactUpdated(a core.Artifact) {
	if a == core.ArtifactCutout || a == core.ArtifactMask {
		cp.refreshComparison(a)
	}
}

func (cp *ControlPanel) dispatch(req core.Request) {
	if err := cp.pipeline.Dispatch(context.Background(), req); err != nil {
		cp.report(err)
	}
}

func (cp *ControlPanel) GetContainer() fyne.CanvasObject {
	return cp.container
}

// ImageLoaded resets the tools for an image of the given size and renders
// the default threshold
func (cp *ControlPanel) ImageLoaded(width, height int) {
	cp.imageWidth, cp.imageHeight = width, height

	cp.lockAspect(width, height)
	cp.widthLabel.SetText(fmt.Sprintf("%d", int(cp.widthSlider.Value)))
	cp.heightLabel.SetText(fmt.Sprintf("%d", int(cp.heightSlider.Value)))

	cp.Enable()
	if cp.thresholdForm != nil {
		cp.thresholdForm.Apply()
	}
}

func (cp *ControlPanel) Enable() {
	for _, w := range cp.enabled {
		w.Enable()
	}
}

func (cp *ControlPanel) Disable() {
	for _, w := range cp.enabled {
		w.Disable()
	}
}

// ParameterForm builds input widgets for a registered algorithm from its
// parameter descriptions
type ParameterForm struct {
	algorithm algorithms.Algorithm
	params    map[string]interface{}
	container *fyne.Container
	widgets   []fyne.Disableable
	onChange  func(map[string]interface{})
}

// NewParameterForm creates a form for the named algorithm. Values in
// initial override the algorithm defaults.
func NewParameterForm(name string, initial map[string]interface{}, onChange func(map[string]interface{})) (*ParameterForm, error) {
	algorithm, ok := algorithms.Get(name)
	if !ok {
		return nil, errors.Wrap(algorithms.ErrUnknownAlgorithm, name)
	}

	params := algorithm.GetDefaultParams()
	for k, v := range initial {
		params[k] = v
	}

	pf := &ParameterForm{
		algorithm: algorithm,
		params:    params,
		container: container.NewVBox(),
		onChange:  onChange,
	}
	for _, param := range algorithm.GetParameterInfo() {
		pf.createParameterWidget(param)
	}
	return pf, nil
}

func (pf *ParameterForm) createParameterWidget(param algorithms.ParameterInfo) {
	pf.container.Add(widget.NewLabel(param.Name + ":"))

	switch param.Type {
	case "int", "float":
		slider := widget.NewSlider(param.Min.(float64), param.Max.(float64))
		format := "%.2f"
		slider.Step = 0.1
		if param.Type == "int" {
			format = "%.0f"
			slider.Step = 1
		}
		if val, ok := pf.params[param.Name].(float64); ok {
			slider.SetValue(val)
		}

		valueLabel := widget.NewLabel(fmt.Sprintf(format, slider.Value))
		slider.OnChanged = func(value float64) {
			valueLabel.SetText(fmt.Sprintf(format, value))
			pf.params[param.Name] = value
			pf.Apply()
		}

		pf.widgets = append(pf.widgets, slider)
		pf.container.Add(container.NewBorder(nil, nil, nil, valueLabel, slider))

	case "bool":
		check := widget.NewCheck("", nil)
		if val, ok := pf.params[param.Name].(bool); ok {
			check.SetChecked(val)
		}
		check.OnChanged = func(checked bool) {
			pf.params[param.Name] = checked
			pf.Apply()
		}
		pf.widgets = append(pf.widgets, check)
		pf.container.Add(check)

	case "enum":
		selectWidget := widget.NewSelect(param.Options, nil)
		if val, ok := pf.params[param.Name].(string); ok {
			selectWidget.SetSelected(strings.ToLower(val))
		}
		selectWidget.OnChanged = func(selected string) {
			pf.params[param.Name] = selected
			pf.Apply()
		}
		pf.widgets = append(pf.widgets, selectWidget)
		pf.container.Add(selectWidget)
	}

	pf.container.Add(widget.NewLabel(param.Description))
	pf.container.Add(widget.NewSeparator())
}

// Apply sends a copy of the current parameters to the change callback
func (pf *ParameterForm) Apply() {
	if pf.onChange == nil {
		return
	}
	params := make(map[string]interface{}, len(pf.params))
	for k, v := range pf.params {
		params[k] = v
	}
	pf.onChange(params)
}

// Param returns the current value of the named parameter
func (pf *ParameterForm) Param(name string) interface{} {
	return pf.params[name]
}

func (pf *ParameterForm) Widgets() []fyne.Disableable {
	return pf.widgets
}

func (pf *ParameterForm) GetContainer() fyne.CanvasObject {
	return pf.container
}
