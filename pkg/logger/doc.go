// Package logger provides a structured logging interface for the blog
// archiver.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with
// support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output
// - Optional file output
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "blogarchive/pkg/logger"
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	err := logger.Initialize(cfg)
//
//	logger.Info("Archiver started")
//	logger.WithField("member", "example").Info("Scraping member blog")
//	logger.WithError(err).Error("Failed to download image")
package logger
