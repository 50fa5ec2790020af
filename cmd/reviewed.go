package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const reviewedFile = "reviewed_structures.txt"

// loadReviewed returns the struct ids already marked as reviewed. A missing
// file means nothing has been reviewed yet.
func loadReviewed(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	defer f.Close()

	reviewed := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			reviewed[id] = true
		}
	}
	return reviewed, scanner.Err()
}

// saveReviewed appends structID to the reviewed file unless it is already
// there.
func saveReviewed(path, structID string) error {
	existing, err := loadReviewed(path)
	if err != nil {
		return err
	}
	if existing[structID] {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, structID)
	return err
}
