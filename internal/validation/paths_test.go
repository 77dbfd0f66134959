package validation

import (
	"path/filepath"
	"testing"

	"github.com/studiopipe/kitsu-fetch/internal/models"
)

func TestValidateFilename(t *testing.T) {
	testCases := []struct {
		name        string
		filename    string
		expectValid bool
	}{
		{"simple", "file.txt", true},
		{"prefixed", "Anim_Output_render.mov", true},
		{"spaces", "my file (3f2a9c1b).mov", true},
		{"double dots inside", "file..txt", true},
		{"hidden", ".hidden", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"slash", "dir/file.txt", false},
		{"backslash", "dir\\file.txt", false},
		{"traversal", "../etc/passwd", false},
		{"null byte", "file\x00.txt", false},
		{"absolute", "/etc/passwd", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilename(tc.filename)
			if tc.expectValid && err != nil {
				t.Errorf("expected %q to be valid, got: %v", tc.filename, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("expected %q to be rejected", tc.filename)
			}
		})
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := filepath.Join(t.TempDir(), "Kitsu_Show")

	testCases := []struct {
		name        string
		path        string
		baseDir     string
		expectValid bool
	}{
		{"file in base", "file.txt", base, true},
		{"nested", "EP01/SQ010/SH010/file.mov", base, true},
		{"dotdot that stays inside", "EP01/../file.txt", base, true},
		{"absolute inside", filepath.Join(base, "Assets", "Props", "x.mp4"), base, true},
		{"parent", "../file.txt", base, false},
		{"grandparent", "../../file.txt", base, false},
		{"escape through subdir", "EP01/../../../etc/passwd", base, false},
		{"absolute outside", filepath.Join(filepath.Dir(base), "other", "x"), base, false},
		{"sibling with shared prefix", base + "_evil/x", base, false},
		{"empty path", "", base, false},
		{"empty base", "file.txt", "", false},
		{"relative base", "file.txt", "downloads", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tc.path, tc.baseDir)
			if tc.expectValid && err != nil {
				t.Errorf("expected %q in %q to be valid, got: %v", tc.path, tc.baseDir, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("expected %q in %q to be rejected", tc.path, tc.baseDir)
			}
		})
	}
}

func TestValidateDestination(t *testing.T) {
	root := t.TempDir()
	ok := models.DownloadItem{
		Category: models.CategoryPreview,
		ID:       "p1",
		Folder:   filepath.Join(root, "EP01", "SQ010", "SH010"),
		Filename: "SH010.mp4",
	}
	if err := ValidateDestination(ok, root); err != nil {
		t.Errorf("valid destination rejected: %v", err)
	}

	escaping := ok
	escaping.Folder = filepath.Join(root, "..", "elsewhere")
	if err := ValidateDestination(escaping, root); err == nil {
		t.Error("escaping folder accepted")
	}

	badName := ok
	badName.Filename = ".."
	if err := ValidateDestination(badName, root); err == nil {
		t.Error("'..' filename accepted")
	}
}
