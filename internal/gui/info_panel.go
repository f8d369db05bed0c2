// Info panel with image details, mask metrics and status messages
package gui

import (
	"fmt"
	"path/filepath"
	"sort"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"cutout-studio/internal/core"
	"cutout-studio/internal/metrics"
)

// InfoPanel provides the right panel with image information and metrics
type InfoPanel struct {
	container *fyne.Container

	imageCard      *widget.Card
	imageContent   *fyne.Container
	metricsCard    *widget.Card
	metricsContent *fyne.Container
	currentMetrics map[string]float64
	metricInfo     map[string]metrics.MetricInfo
}

func NewInfoPanel() *InfoPanel {
	panel := &InfoPanel{
		currentMetrics: make(map[string]float64),
		metricInfo:     metrics.NewEvaluator().GetMetricInfo(),
	}

	panel.initializeUI()
	return panel
}

func (ip *InfoPanel) initializeUI() {
	ip.imageContent = container.NewVBox(widget.NewLabel("No image loaded"))
	ip.imageCard = widget.NewCard("Image", "", ip.imageContent)

	ip.metricsContent = container.NewVBox(
		widget.NewLabel("Metrics appear here after processing."),
	)
	ip.metricsCard = widget.NewCard("Metrics", "", ip.metricsContent)

	ip.container = container.NewVBox(
		ip.imageCard,
		widget.NewSeparator(),
		ip.metricsCard,
	)
}

func (ip *InfoPanel) GetContainer() fyne.CanvasObject {
	return container.NewVScroll(ip.container)
}

func (ip *InfoPanel) UpdateMetrics(values map[string]float64) {
	ip.currentMetrics = values
	ip.refreshMetricsDisplay()
}

func (ip *InfoPanel) refreshMetricsDisplay() {
	ip.metricsContent.RemoveAll()

	if len(ip.currentMetrics) == 0 {
		ip.metricsContent.Add(widget.NewLabel("No metrics yet"))
		ip.metricsContent.Refresh()
		return
	}

	names := make([]string, 0, len(ip.currentMetrics))
	for name := range ip.currentMetrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ip.metricsContent.Add(ip.createMetricWidget(name, ip.currentMetrics[name]))
	}
	ip.metricsContent.Refresh()
}

func (ip *InfoPanel) createMetricWidget(name string, value float64) fyne.CanvasObject {
	label := name
	if info, ok := ip.metricInfo[name]; ok {
		label = info.Name
	}

	var text string
	switch name {
	case "psnr":
		text = fmt.Sprintf("%s: %.2f dB", label, value)
	case "foreground_ratio", "mask_iou", "probability_mean":
		text = fmt.Sprintf("%s: %.1f%%", label, value*100)
	default:
		text = fmt.Sprintf("%s: %.3f", label, value)
	}
	return widget.NewLabel(text)
}

func (ip *InfoPanel) Clear() {
	ip.currentMetrics = make(map[string]float64)
	ip.refreshMetricsDisplay()
}

func (ip *InfoPanel) ShowImageInfo(path string, meta core.ImageMetadata) {
	ip.imageContent.RemoveAll()
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("File: %s", filepath.Base(path))))
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("Size: %d x %d", meta.Width, meta.Height)))
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("Channels: %d", meta.Channels)))
	ip.imageContent.Add(widget.NewLabel(fmt.Sprintf("Format: %s", meta.Format)))
	ip.imageContent.Refresh()
}

// StatusManager handles status messages and notifications
type StatusManager struct {
	widget    *widget.Card
	container *fyne.Container
	message   string
}

func NewStatusManager() *StatusManager {
	manager := &StatusManager{}
	manager.initializeUI()
	return manager
}

func (sm *StatusManager) initializeUI() {
	sm.message = "Open an image to begin"
	sm.container = container.NewHBox(
		widget.NewIcon(theme.InfoIcon()),
		widget.NewLabel(sm.message),
	)
	sm.widget = widget.NewCard("", "", sm.container)
}

func (sm *StatusManager) GetWidget() fyne.CanvasObject {
	return sm.widget
}

// Message returns the text currently shown
func (sm *StatusManager) Message() string {
	return sm.message
}

func (sm *StatusManager) ShowInfo(message string) {
	sm.updateStatus(message, theme.InfoIcon())
}

func (sm *StatusManager) ShowSuccess(message string) {
	sm.updateStatus(message, theme.ConfirmIcon())
}

func (sm *StatusManager) ShowWarning(message string) {
	sm.updateStatus(message, theme.WarningIcon())
}

func (sm *StatusManager) ShowError(err error) {
	sm.updateStatus(fmt.Sprintf("Error: %s", err.Error()), theme.ErrorIcon())
}

func (sm *StatusManager) updateStatus(message string, icon fyne.Resource) {
	sm.message = message
	sm.container.RemoveAll()
	sm.container.Add(widget.NewIcon(icon))
	sm.container.Add(widget.NewLabel(message))
	sm.container.Refresh()
}
