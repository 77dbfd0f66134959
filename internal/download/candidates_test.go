package download

import (
	"testing"

	"github.com/studiopipe/kitsu-fetch/internal/models"
)

const testHost = "https://kitsu.studio.test/api"

func TestGenerateCandidates(t *testing.T) {
	tests := []struct {
		category models.Category
		want     []string
	}{
		{models.CategoryPreview, []string{
			"https://kitsu.studio.test/api/movies/originals/preview-files/abc/download",
			"https://kitsu.studio.test/api/pictures/originals/preview-files/abc/download",
			"https://kitsu.studio.test/api/movies/preview-files/abc/download",
			"https://kitsu.studio.test/api/pictures/preview-files/abc/download",
			"https://kitsu.studio.test/api/movies/originals/preview-files/abc/download",
			"https://kitsu.studio.test/api/pictures/originals/preview-files/abc/download",
		}},
		{models.CategoryOutput, []string{
			"https://kitsu.studio.test/api/data/output-files/abc/download",
			"https://kitsu.studio.test/api/data/output-files/abc/file",
		}},
		{models.CategoryWorking, []string{
			"https://kitsu.studio.test/api/data/working-files/abc/download",
			"https://kitsu.studio.test/api/data/working-files/abc/file",
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			got := GenerateCandidates(tt.category, "abc", testHost)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d candidates, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
			again := GenerateCandidates(tt.category, "abc", testHost)
			for i := range got {
				if got[i] != again[i] {
					t.Errorf("order not stable at %d", i)
				}
			}
		})
	}
}

func TestGenerateCandidatesHostVariants(t *testing.T) {
	got := GenerateCandidates(models.CategoryPreview, "id", "https://proxy.test/kitsu/api/")
	if got[0] != "https://proxy.test/kitsu/api/movies/originals/preview-files/id/download" {
		t.Errorf("api candidate = %s", got[0])
	}
	if got[4] != "https://proxy.test/kitsu/api/movies/originals/preview-files/id/download" {
		t.Errorf("mount candidate = %s", got[4])
	}
	if GenerateCandidates("thumbnail", "id", testHost) != nil {
		t.Error("unknown category should have no candidates")
	}
}

func TestFullURL(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"", ""},
		{"https://cdn.test/x.mov", "https://cdn.test/x.mov"},
		{"http://cdn.test/x.mov", "http://cdn.test/x.mov"},
		{"/api/movies/x", "https://kitsu.studio.test/api/movies/x"},
		{"files/x.mov", "https://kitsu.studio.test/files/x.mov"},
	}
	for _, tt := range tests {
		if got := FullURL(testHost, tt.raw); got != tt.want {
			t.Errorf("FullURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCandidatesExplicitFirstWithoutDuplicates(t *testing.T) {
	item := models.DownloadItem{
		Category: models.CategoryOutput,
		ID:       "abc",
		URL:      "/api/data/output-files/abc/file",
	}
	got := Candidates(item, testHost)
	want := []string{
		"https://kitsu.studio.test/api/data/output-files/abc/file",
		"https://kitsu.studio.test/api/data/output-files/abc/download",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	item.URL = ""
	if n := len(Candidates(item, testHost)); n != 2 {
		t.Errorf("without explicit url got %d", n)
	}
}
