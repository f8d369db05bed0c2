// Menu handler for application actions
package gui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"cutout-studio/internal/compose"
	"cutout-studio/internal/core"
	"cutout-studio/internal/io"
)

// saveable artifacts, in menu order
var saveTargets = []struct {
	artifact core.Artifact
	label    string
}{
	{core.ArtifactCutout, "Save Cutout..."},
	{core.ArtifactMask, "Save Mask..."},
	{core.ArtifactThreshold, "Save Threshold..."},
	{core.ArtifactThresholdMask, "Save Threshold Mask..."},
	{core.ArtifactResized, "Save Resized..."},
	{core.ArtifactComparison, "Save Comparison..."},
}

// MenuHandler handles menu actions
type MenuHandler struct {
	window   fyne.Window
	pipeline *core.Pipeline
	logger   *logrus.Entry

	onImageLoaded func(string)
	onImageSaved  func(string)
	report        func(error)
}

func NewMenuHandler(window fyne.Window, pipeline *core.Pipeline, logger *logrus.Logger) *MenuHandler {
	return &MenuHandler{
		window:   window,
		pipeline: pipeline,
		logger:   logger.WithField("component", "menu"),
	}
}

func (mh *MenuHandler) GetMainMenu() *fyne.MainMenu {
	items := []*fyne.MenuItem{
		fyne.NewMenuItem("Open Image...", mh.openImage),
		fyne.NewMenuItemSeparator(),
	}
	for _, target := range saveTargets {
		artifact := target.artifact
		items = append(items, fyne.NewMenuItem(target.label, func() {
			mh.saveArtifact(artifact)
		}))
	}
	items = append(items,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Exit", func() {
			mh.window.Close()
		}),
	)
	fileMenu := fyne.NewMenu("File", items...)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Reset Selection", func() {
			mh.dispatch(core.ResetSelectionRequest{})
		}),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mh.showAbout),
	)

	return fyne.NewMainMenu(fileMenu, editMenu, helpMenu)
}

func (mh *MenuHandler) openImage() {
	mh.logger.Debug("Opening file dialog for image selection")

	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			mh.showError(err)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		path := reader.URI().Path()
		if err := mh.LoadImage(path); err != nil {
			mh.showError(err)
		}
	}, mh.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter(io.ReadableExtensions()))
	fileDialog.Show()
}

// LoadImage loads path into the session and notifies the application
func (mh *MenuHandler) LoadImage(path string) error {
	if err := mh.pipeline.Dispatch(context.Background(), core.LoadRequest{Path: path}); err != nil {
		return err
	}
	if mh.onImageLoaded != nil {
		mh.onImageLoaded(path)
	}
	return nil
}

func (mh *MenuHandler) saveArtifact(artifact core.Artifact) {
	if !mh.pipeline.Session().HasArtifact(artifact) {
		mh.showError(errors.Wrapf(compose.ErrEmptyInput, "no %s to save yet", artifact))
		return
	}

	fileDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			mh.showError(err)
			return
		}
		if writer == nil {
			return
		}
		path := writer.URI().Path()
		// the encoder writes the file itself
		writer.Close()

		if err := mh.pipeline.Dispatch(context.Background(), core.SaveRequest{Artifact: artifact, Path: path}); err != nil {
			mh.showError(err)
			return
		}
		if mh.onImageSaved != nil {
			mh.onImageSaved(path)
		}
	}, mh.window)

	fileDialog.SetFileName(artifact.String() + ".png")
	fileDialog.SetFilter(storage.NewExtensionFileFilter(io.WritableExtensions()))
	fileDialog.Show()
}

func (mh *MenuHandler) dispatch(req core.Request) {
	if err := mh.pipeline.Dispatch(context.Background(), req); err != nil {
		mh.showError(err)
	}
}

func (mh *MenuHandler) showAbout() {
	content := container.NewVBox(
		widget.NewLabel("Cutout Studio"),
		widget.NewSeparator(),
		widget.NewLabel("Foreground extraction from a dragged rectangle"),
		widget.NewLabel("or a learned matte, with thresholding,"),
		widget.NewLabel("resizing and side-by-side comparison."),
		widget.NewSeparator(),
		widget.NewLabel("Built with Go, Fyne v2.6 and OpenCV"),
		widget.NewLabel("License: MIT"),
	)

	aboutDialog := dialog.NewCustom("About", "Close", content, mh.window)
	aboutDialog.Resize(fyne.NewSize(400, 300))
	aboutDialog.Show()
}

func (mh *MenuHandler) showError(err error) {
	if mh.report != nil {
		mh.report(err)
		return
	}
	mh.logger.WithError(err).Error("Menu action failed")
	dialog.ShowError(err, mh.window)
}

func (mh *MenuHandler) SetCallbacks(onImageLoaded, onImageSaved func(string), report func(error)) {
	mh.onImageLoaded = onImageLoaded
	mh.onImageSaved = onImageSaved
	mh.report = report
}
