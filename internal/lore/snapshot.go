package lore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"lorepatch/internal/model"
)

func SaveBookmarkedPatchsets(patches []model.Patch, path string) error {
	return writeJSONAtomic(path, patches)
}

func LoadBookmarkedPatchsets(path string) ([]model.Patch, error) {
	var patches []model.Patch
	if err := readJSON(path, &patches); err != nil {
		return nil, err
	}
	return patches, nil
}

func SaveAvailableLists(lists []model.MailingList, path string) error {
	return writeJSONAtomic(path, lists)
}

func LoadAvailableLists(path string) ([]model.MailingList, error) {
	var lists []model.MailingList
	if err := readJSON(path, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

func SaveReviewedPatchsets(reviewed model.ReviewedPatchsets, path string) error {
	return writeJSONAtomic(path, reviewed)
}

func LoadReviewedPatchsets(path string) (model.ReviewedPatchsets, error) {
	reviewed := make(model.ReviewedPatchsets)
	if err := readJSON(path, &reviewed); err != nil {
		return nil, err
	}
	return reviewed, nil
}

// writeJSONAtomic writes v next to path and renames it into place so that
// readers never observe a partial file.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
