package validation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateOutputPath(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
		setup   func() string
	}{
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
		},
		{
			name:    "valid path in temp dir",
			wantErr: false,
			setup: func() string {
				return filepath.Join(tmpDir, "mermaid-graph-1080p.svg")
			},
		},
		{
			name:    "path traversal attempt with ..",
			path:    "../../etc/mermaid-graph-1080p.png",
			wantErr: true,
		},
		{
			name:    "path in non-existent directory",
			path:    "/nonexistent/directory/mermaid-graph-1080p.svg",
			wantErr: true,
		},
		{
			name:    "existing directory",
			wantErr: true,
			setup: func() string {
				dir := filepath.Join(tmpDir, "out.png")
				os.MkdirAll(dir, 0755)
				return dir
			},
		},
		{
			name:    "valid nested path",
			wantErr: false,
			setup: func() string {
				nested := filepath.Join(tmpDir, "nested", "dir")
				os.MkdirAll(nested, 0755)
				return filepath.Join(nested, "mermaid-graph-2x1080p.png")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			if tt.setup != nil {
				path = tt.setup()
			}

			err := ValidateOutputPath(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputPath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateInputPath(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "flow.mmd")
	testDir := filepath.Join(tmpDir, "diagrams")

	if err := os.WriteFile(testFile, []byte("graph TD; A-->B"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if err := os.MkdirAll(testDir, 0755); err != nil {
		t.Fatalf("Failed to create test directory: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "empty path", path: "", wantErr: true},
		{name: "valid file", path: testFile, wantErr: false},
		{name: "directory", path: testDir, wantErr: true},
		{name: "non-existent path", path: "/nonexistent/flow.mmd", wantErr: true},
		{name: "relative escape", path: "../flow.mmd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInputPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInputPath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputExtension(t *testing.T) {
	tests := []struct {
		path    string
		format  string
		wantErr bool
	}{
		{path: "out/diagram.png", format: "png"},
		{path: "out/DIAGRAM.SVG", format: "svg"},
		{path: "out/diagram.svg", format: "png", wantErr: true},
		{path: "out/diagram", format: "svg", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateOutputExtension(tt.path, tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputExtension() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputPath_Permissions(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping permission test when running as root")
	}

	// Skip on Windows - permissions work differently
	if os.PathSeparator == '\\' {
		t.Skip("Skipping permission test on Windows")
	}

	tmpDir := t.TempDir()
	readOnlyDir := filepath.Join(tmpDir, "readonly")
	if err := os.MkdirAll(readOnlyDir, 0555); err != nil {
		t.Fatalf("Failed to create read-only directory: %v", err)
	}
	defer os.Chmod(readOnlyDir, 0755)

	err := ValidateOutputPath(filepath.Join(readOnlyDir, "mermaid-graph-1080p.png"))
	if err == nil {
		t.Error("ValidateOutputPath() should fail for read-only directory")
	}
}
