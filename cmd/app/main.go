// Cutout Studio - interactive foreground extraction
// Author: Ervins Strauhmanis
// License: MIT
// Version: 3.0.0 - GrabCut + Matte + Threshold Compare

package main

import (
	"flag"
	"os"

	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"

	"cutout-studio/internal/config"
	"cutout-studio/internal/core"
	"cutout-studio/internal/gui"
	"cutout-studio/internal/io"
	"cutout-studio/internal/logging"
)

const (
	AppName    = "Cutout Studio"
	AppID      = "com.strauhmanis.cutout-studio"
	AppVersion = "3.0.0"
)

func main() {
	// Parse command line flags
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	configPath := flag.String("config", "cutout.toml", "Path to the TOML configuration file")
	modelPath := flag.String("model", "", "Matte model (ONNX); overrides the config file")
	imagePath := flag.String("image", "", "Image to open at startup")
	logFormat := flag.String("log-format", "", "Log format (text or json); overrides the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", "text", *debugMode).WithError(err).Fatal("Failed to load configuration")
	}
	if *modelPath != "" {
		cfg.Matte.ModelPath = *modelPath
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// Initialize logger
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, *debugMode)
	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": *debugMode,
		"config":     *configPath,
	}).Info("Starting Cutout Studio")

	pipeline, err := core.NewPipelineFromConfig(cfg, io.NewImageLoader(logger), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize pipeline")
	}

	myApp := app.NewWithID(AppID)
	myApp.SetIcon(theme.DocumentIcon())
	myApp.Settings().SetTheme(theme.DefaultTheme())

	mainApp := gui.NewApplication(myApp, pipeline, cfg, logger, *debugMode)
	if *imagePath != "" {
		if err := mainApp.LoadImageFromPath(*imagePath); err != nil {
			logger.WithError(err).WithField("image", *imagePath).Error("Failed to open startup image")
		}
	}
	mainApp.ShowAndRun()

	logger.Info("Application shutting down gracefully")
	os.Exit(0)
}
