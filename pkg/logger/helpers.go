package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogDownload logs image download outcomes
func LogDownload(log Logger, memberName, url string, success bool, err error) {
	if log == nil {
		log = GetLogger()
	}

	logger := log.WithFields(map[string]interface{}{
		"member":  memberName,
		"url":     url,
		"success": success,
	})

	if err != nil {
		logger.WithError(err).Error("Download failed")
	} else if success {
		logger.Debug("Download completed")
	} else {
		logger.Warn("Download skipped")
	}
}

// LogScrapeProgress logs per-member scraping progress
func LogScrapeProgress(memberName string, scraped, total int) {
	GetLogger().WithFields(map[string]interface{}{
		"member":  memberName,
		"scraped": scraped,
		"total":   total,
	}).Info("Scraping progress")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
