package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"parcellink/internal/geo"
)

// readTable iterates through a delimited file with a header row, calling fn
// for each record keyed by header name. The delimiter is sniffed from the
// header line: '|' when present, ',' otherwise. row is 1-based (header is 0).
// Rows the CSV reader rejects are passed to bad and skipped.
func readTable(path string, fn func(row int, record map[string]string), bad func(row int, err error)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", geo.ErrMissingInput, path)
		}
		return err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 1024*1024)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return err
	}
	if len(first) == 0 {
		return fmt.Errorf("file %s is empty", path)
	}

	reader := csv.NewReader(br)
	headerLine := string(first)
	if i := strings.IndexByte(headerLine, '\n'); i >= 0 {
		headerLine = headerLine[:i]
	}
	if strings.Contains(headerLine, "|") {
		reader.Comma = '|'
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	row := 0
	for {
		cols, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) && bad != nil {
				bad(row, err)
				continue
			}
			return fmt.Errorf("failed to read %s row %d: %w", path, row, err)
		}

		rec := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(cols) {
				rec[h] = strings.TrimSpace(cols[j])
			}
		}
		fn(row, rec)
	}
	return nil
}
