package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetFileExtension returns the lower-cased extension without the dot
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp":
		return true
	}
	return false
}

// OutputPath builds the path of a rendered file inside outputDir. An empty
// name falls back to the input file's base name.
func OutputPath(inputFile, outputDir, prefix, name, format string) string {
	if name == "" {
		base := filepath.Base(inputFile)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if format == "" {
		format = "png"
	}
	name = SanitizeFilename(strings.TrimSuffix(name, filepath.Ext(name)))
	return filepath.Join(outputDir, fmt.Sprintf("%s%s.%s", prefix, name, format))
}

// ListImageFiles recursively lists all image files in a directory
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// DirExists reports whether path names a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename replaces characters that are invalid in file names and
// trims leading and trailing spaces and dots.
func SanitizeFilename(filename string) string {
	return strings.Trim(filenameReplacer.Replace(filename), " .")
}
