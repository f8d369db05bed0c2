// Main application window wiring the pipeline to the views and controls
package gui

import (
	"fmt"
	"image"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"cutout-studio/internal/compose"
	"cutout-studio/internal/config"
	"cutout-studio/internal/core"
)

// Application represents the main application window
type Application struct {
	app       fyne.App
	window    fyne.Window
	logger    *logrus.Logger
	debugMode bool
	cfg       *config.Config

	pipeline *core.Pipeline

	// GUI components
	canvas      *InteractiveCanvas
	views       map[core.Artifact]*ImageView
	compareView *CompareView
	controls    *ControlPanel
	infoPanel   *InfoPanel
	status      *StatusManager
	menuHandler *MenuHandler

	// Layout containers
	mainContent *container.Split
	viewTabs    *container.AppTabs
	tabs        map[core.Artifact]*container.TabItem
}

func NewApplication(app fyne.App, pipeline *core.Pipeline, cfg *config.Config, logger *logrus.Logger, debugMode bool) *Application {
	window := app.NewWindow("Cutout Studio")
	window.Resize(fyne.NewSize(float32(cfg.Window.Width), float32(cfg.Window.Height)))
	window.CenterOnScreen()

	appInstance := &Application{
		app:       app,
		window:    window,
		logger:    logger,
		debugMode: debugMode,
		cfg:       cfg,
		pipeline:  pipeline,
	}

	appInstance.initializeGUI()
	appInstance.setupLayout()
	appInstance.setupCallbacks()

	return appInstance
}

func (a *Application) initializeGUI() {
	a.canvas = NewInteractiveCanvas(a.pipeline, a.logger)
	a.views = map[core.Artifact]*ImageView{
		core.ArtifactCutout:        NewImageView("Select a region and run Extract Foreground", a.logger),
		core.ArtifactMask:          NewImageView("The foreground mask appears after extraction", a.logger),
		core.ArtifactThreshold:     NewImageView("Load an image to see the threshold result", a.logger),
		core.ArtifactThresholdMask: NewImageView("Apply a threshold mask to see it here", a.logger),
		core.ArtifactResized:       NewImageView("Adjust the size sliders to resize", a.logger),
	}
	a.compareView = NewCompareView(a.cfg.Window.PreviewWidth, a.cfg.Window.PreviewHeight, a.logger)
	a.controls = NewControlPanel(a.pipeline, a.cfg, a.report, a.logger)
	a.controls.SetSurfaceSize(a.compareView.SurfaceSize)
	a.infoPanel = NewInfoPanel()
	a.status = NewStatusManager()
	a.menuHandler = NewMenuHandler(a.window, a.pipeline, a.logger)
}

func (a *Application) setupLayout() {
	a.tabs = map[core.Artifact]*container.TabItem{
		core.ArtifactCutout:        container.NewTabItem("Cutout", a.views[core.ArtifactCutout].GetContainer()),
		core.ArtifactMask:          container.NewTabItem("Mask", a.views[core.ArtifactMask].GetContainer()),
		core.ArtifactThreshold:     container.NewTabItem("Threshold", a.views[core.ArtifactThreshold].GetContainer()),
		core.ArtifactThresholdMask: container.NewTabItem("Threshold Mask", a.views[core.ArtifactThresholdMask].GetContainer()),
		core.ArtifactResized:       container.NewTabItem("Resized", a.views[core.ArtifactResized].GetContainer()),
		core.ArtifactComparison:    container.NewTabItem("Comparison", a.compareView),
	}

	a.viewTabs = container.NewAppTabs(
		container.NewTabItem("Original", a.canvas),
		a.tabs[core.ArtifactCutout],
		a.tabs[core.ArtifactMask],
		a.tabs[core.ArtifactThreshold],
		a.tabs[core.ArtifactThresholdMask],
		a.tabs[core.ArtifactResized],
		a.tabs[core.ArtifactComparison],
	)

	rightPanel := container.NewBorder(
		widget.NewCard("Status", "", a.status.GetWidget()),
		nil, nil, nil,
		a.infoPanel.GetContainer(),
	)

	centerAndRight := container.NewHSplit(container.NewPadded(a.viewTabs), rightPanel)
	centerAndRight.SetOffset(0.78)

	a.mainContent = container.NewHSplit(a.controls.GetContainer(), centerAndRight)
	a.mainContent.SetOffset(0.25)

	a.window.SetMainMenu(a.menuHandler.GetMainMenu())
	a.window.SetContent(a.mainContent)
}

func (a *Application) setupCallbacks() {
	// Results may be published from the segmentation goroutine
	a.pipeline.SetCallbacks(
		func(artifact core.Artifact) {
			fyne.Do(func() {
				a.showArtifact(artifact)
			})
		},
		func(err error) {
			fyne.Do(func() {
				a.showError("Processing Error", err)
			})
		},
	)

	a.pipeline.Selection().OnChange(func(state core.SelectionState, rect image.Rectangle) {
		fyne.Do(func() {
			a.canvas.Refresh()
			if state == core.SelectionCommitted {
				a.status.ShowInfo(fmt.Sprintf("Selection %dx%d at (%d, %d)", rect.Dx(), rect.Dy(), rect.Min.X, rect.Min.Y))
			}
		})
	})

	a.compareView.SetOnSplit(a.controls.SetSplit)

	a.menuHandler.SetCallbacks(
		// onImageLoaded
		func(path string) {
			a.imageLoaded(path)
		},
		// onImageSaved
		func(path string) {
			a.status.ShowSuccess(fmt.Sprintf("Saved: %s", path))
		},
		a.report,
	)
}

func (a *Application) imageLoaded(path string) {
	session := a.pipeline.Session()
	original := session.Original()
	defer original.Close()

	a.canvas.SetImage(original)
	for _, view := range a.views {
		view.Clear()
	}
	a.compareView.Clear()
	a.infoPanel.Clear()

	meta := session.Metadata()
	a.infoPanel.ShowImageInfo(path, meta)
	a.controls.ImageLoaded(meta.Width, meta.Height)
	a.viewTabs.SelectIndex(0)
	a.status.ShowSuccess(fmt.Sprintf("Loaded: %s", filepath.Base(path)))
}

// showArtifact refreshes the view of an artifact that was published or discarded
func (a *Application) showArtifact(artifact core.Artifact) {
	mat, ok := a.pipeline.Session().Artifact(artifact)
	if !ok {
		mat = gocv.NewMat()
	}
	defer mat.Close()

	switch artifact {
	case core.ArtifactComparison:
		a.compareView.SetMat(mat)
	case core.ArtifactMask:
		if mat.Empty() {
			a.views[artifact].Clear()
			break
		}
		preview, err := compose.MaskPreview(mat)
		if err != nil {
			a.logger.WithError(err).Error("Failed to render mask preview")
			break
		}
		a.views[artifact].SetMat(preview)
		preview.Close()
	default:
		if view, ok := a.views[artifact]; ok {
			view.SetMat(mat)
		}
	}

	if artifact == core.ArtifactCutout && !mat.Empty() {
		a.viewTabs.Select(a.tabs[core.ArtifactCutout])
		a.status.ShowSuccess("Foreground extracted")
	}

	a.controls.ArtifactUpdated(artifact)
	a.infoPanel.UpdateMetrics(a.pipeline.Metrics())
}

// report shows no-op conditions in the status bar and failures in a dialog
func (a *Application) report(err error) {
	if err == nil {
		return
	}
	if core.IsNotice(err) {
		a.logger.WithError(err).Info("Request skipped")
		a.status.ShowWarning(noticeText(err))
		return
	}
	a.showError("Request Failed", err)
}

func noticeText(err error) string {
	switch {
	case errors.Is(err, core.ErrNoSelection):
		return "Drag a rectangle on the Original view first"
	case errors.Is(err, core.ErrNoImage):
		return "Open an image first"
	}
	return err.Error()
}

func (a *Application) ShowAndRun() {
	a.logger.WithField("debug_mode", a.debugMode).Info("Showing main application window")

	a.window.SetCloseIntercept(func() {
		a.cleanup()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}

func (a *Application) cleanup() {
	a.logger.Info("Cleaning up application resources")
	a.pipeline.Close()
	a.pipeline.Session().Close()
	a.canvas.Close()
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	dialog.ShowError(err, a.window)
	a.status.ShowError(err)
}

// LoadImageFromPath opens path as if chosen from the File menu
func (a *Application) LoadImageFromPath(path string) error {
	return a.menuHandler.LoadImage(path)
}
