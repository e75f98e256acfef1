// Package validation guards the file paths the CLI and the Terraform provider
// read diagram sources from and write exports to.
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Validator implements interfaces.PathValidator with the package functions.
type Validator struct{}

// ValidateOutputPath implements interfaces.PathValidator.
func (Validator) ValidateOutputPath(path string) error { return ValidateOutputPath(path) }

// ValidateInputPath implements interfaces.PathValidator.
func (Validator) ValidateInputPath(path string) error { return ValidateInputPath(path) }

// ValidateOutputPath validates an output path for security and accessibility
// Returns error if path is invalid, contains path traversal attempts, or is not writable
func ValidateOutputPath(outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}

	cleanPath := filepath.Clean(outputPath)

	for _, part := range strings.Split(filepath.ToSlash(cleanPath), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected in output path: %s", outputPath)
		}
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
		return fmt.Errorf("failed to access output directory: %w", err)
	}
	if !dirInfo.IsDir() {
		return fmt.Errorf("output path parent is not a directory: %s", dir)
	}

	if info, err := os.Stat(absPath); err == nil && info.IsDir() {
		return fmt.Errorf("output path is a directory: %s", absPath)
	}

	// Probe writability with a throwaway file
	testFile := filepath.Join(dir, ".mermaid_studio_write_test")
	f, err := os.OpenFile(testFile, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("output directory is not writable: %s: %w", dir, err)
	}
	f.Close()
	os.Remove(testFile)

	return nil
}

// ValidateInputPath validates a diagram source file
// Returns error if path doesn't exist, is not accessible or is a directory
func ValidateInputPath(inputPath string) error {
	if inputPath == "" {
		return fmt.Errorf("input path cannot be empty")
	}

	cleanPath := filepath.Clean(inputPath)

	// Relative paths must stay below the working directory
	if !filepath.IsAbs(cleanPath) && (cleanPath == ".." || strings.HasPrefix(filepath.ToSlash(cleanPath), "../")) {
		return fmt.Errorf("potentially unsafe path detected: %s", inputPath)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input path does not exist: %s", cleanPath)
		}
		return fmt.Errorf("failed to access input path: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path must be a file: %s", cleanPath)
	}

	return nil
}

// ValidateOutputExtension checks that the output file extension matches the
// export format, e.g. "diagram.png" for png.
func ValidateOutputExtension(outputPath, format string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(outputPath)), ".")
	if ext != strings.ToLower(format) {
		return fmt.Errorf("output path %s does not end in .%s", outputPath, strings.ToLower(format))
	}
	return nil
}
