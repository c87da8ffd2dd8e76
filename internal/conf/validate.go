package conf

import (
	stderrors "errors"

	"github.com/fridgecat/fridgecat-go/internal/errors"
)

// asConfigFileNotFound wraps errors.As for the viper sentinel so config.go
// stays free of a second errors import.
func asConfigFileNotFound(err error, target any) bool {
	return stderrors.As(err, target)
}

// ValidateSettings checks the loaded settings for obvious misconfiguration.
func ValidateSettings(settings *Settings) error {
	if settings.Crawler.MaxConcurrentPerDomain < 1 {
		return errors.Newf("crawler.maxconcurrentperdomain must be at least 1, got %d",
			settings.Crawler.MaxConcurrentPerDomain).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("setting", "crawler.maxconcurrentperdomain").
			Build()
	}

	if settings.Crawler.DownloadDelay < 0 {
		return errors.Newf("crawler.downloaddelay must not be negative, got %v",
			settings.Crawler.DownloadDelay).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("setting", "crawler.downloaddelay").
			Build()
	}

	if settings.Crawler.MaxDelay < settings.Crawler.DownloadDelay {
		return errors.Newf("crawler.maxdelay (%v) must not be below crawler.downloaddelay (%v)",
			settings.Crawler.MaxDelay, settings.Crawler.DownloadDelay).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("setting", "crawler.maxdelay").
			Build()
	}

	if settings.Crawler.DepthLimit < 1 {
		return errors.Newf("crawler.depthlimit must be at least 1, got %d",
			settings.Crawler.DepthLimit).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("setting", "crawler.depthlimit").
			Build()
	}

	if t := settings.NLP.SimilarityThreshold; t < 0 || t > 1 {
		return errors.Newf("nlp.similaritythreshold must be within [0,1], got %f", t).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("setting", "nlp.similaritythreshold").
			Build()
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.Newf("no output store enabled, enable output.sqlite or output.mysql").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}
