package core

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var slugInvalidRegex = regexp.MustCompile(`[^a-z0-9]+`)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Slugify lowercases `s`, collapses every run of non-alphanumeric characters
// into a single hyphen and strips leading/trailing hyphens.
func Slugify(s string) string {
	s = slugInvalidRegex.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// Getwd tries to find the project root.
// go-test changes the working directory to the test package being run during tests;
// walking up to the directory containing go.mod keeps config loading working.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
