package main

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loom/internal/lease"
)

var titleCaser = cases.Title(language.English)

// segmentDisplayName renders a segment key for humans: "main_themes"
// becomes "Main Themes".
func segmentDisplayName(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return d.String()
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatJobError(job *lease.Job) string {
	if job.LastErrorClass == "" {
		return "-"
	}
	message := job.LastErrorMessage
	if len(message) > 60 {
		message = message[:57] + "..."
	}
	return fmt.Sprintf("%s: %s", job.LastErrorClass, message)
}
