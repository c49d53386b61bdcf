// Package input loads raw URL lists for the orchestrator: newline-delimited
// text or CSV files with a url column. Loaders return raw strings; scheme
// defaulting happens later in types.NewAnalysisRequest.
package input

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Load reads URLs from a file, picking the format by extension: .csv parses
// as a table with a url column, anything else as a newline-delimited list.
func Load(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer fh.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(fh)
	}
	return ReadList(fh)
}

// ReadList reads a newline-delimited URL list. Blank lines and lines
// starting with '#' are skipped.
func ReadList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return urls, nil
}

// ReadCSV reads the url column of a CSV table. The header match is
// case-insensitive; rows with an empty url cell are skipped.
func ReadCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv input is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	urlCol := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "url") {
			urlCol = i
			break
		}
	}
	if urlCol < 0 {
		return nil, errors.New("csv input has no url column")
	}

	var urls []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if urlCol >= len(record) {
			continue
		}
		if value := strings.TrimSpace(record[urlCol]); value != "" {
			urls = append(urls, value)
		}
	}
	return urls, nil
}
