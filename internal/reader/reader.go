package reader

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/shiptrack/internal/ingest"
)

var (
	// ErrNoFiles is returned when a source directory holds no readable exports.
	ErrNoFiles = errors.New("no export files found")
	// ErrUnsupportedFormat is returned for file extensions the reader cannot parse.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

var (
	byteOrderMark   = []byte{0xEF, 0xBB, 0xBF}
	captureTimeExpr = regexp.MustCompile(`(\d{8})(\d{6})`)
)

// FileInfo identifies one export file in a source directory.
type FileInfo struct {
	Name       string
	Path       string
	CapturedAt time.Time
}

// Table is a parsed export: sanitized headers plus one map per data row.
type Table struct {
	FileName   string
	CapturedAt time.Time
	Headers    []string
	Rows       []ingest.RawRow
}

// LatestFile returns the most recent .xlsx or .csv export in dir. Recency is
// the capture time embedded in the filename when present, modification time
// otherwise.
func LatestFile(dir string) (FileInfo, error) {
	files, err := listFiles(dir)
	if err != nil {
		return FileInfo{}, err
	}
	if len(files) == 0 {
		return FileInfo{}, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	return files[0], nil
}

// Load parses an export file into a Table.
func Load(info FileInfo) (Table, error) {
	payload, err := os.ReadFile(info.Path)
	if err != nil {
		return Table{}, fmt.Errorf("read export %s: %w", info.Name, err)
	}

	headers, rows, err := parseTable(info.Name, payload)
	if err != nil {
		return Table{}, fmt.Errorf("parse export %s: %w", info.Name, err)
	}

	mapped := make([]ingest.RawRow, 0, len(rows))
	for _, row := range rows {
		entry := make(ingest.RawRow, len(headers))
		for i, header := range headers {
			entry[header] = strings.TrimSpace(row[i])
		}
		mapped = append(mapped, entry)
	}

	return Table{
		FileName:   info.Name,
		CapturedAt: info.CapturedAt,
		Headers:    headers,
		Rows:       mapped,
	}, nil
}

// Prune keeps the newest keep exports in dir and removes the rest. Deletion
// failures are logged and skipped. Returns the number of files removed.
func Prune(dir string, keep int) int {
	if keep < 1 {
		keep = 1
	}
	files, err := listFiles(dir)
	if err != nil {
		log.Printf("[reader] prune %s: %v", dir, err)
		return 0
	}
	if len(files) <= keep {
		return 0
	}

	removed := 0
	for _, file := range files[keep:] {
		if err := os.Remove(file.Path); err != nil {
			log.Printf("[reader] failed to remove %s: %v", file.Name, err)
			continue
		}
		removed++
	}
	return removed
}

func listFiles(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".xlsx" && ext != ".csv" {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:       name,
			Path:       filepath.Join(dir, name),
			CapturedAt: captureTime(name, stat.ModTime()),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].CapturedAt.Equal(files[j].CapturedAt) {
			return files[i].CapturedAt.After(files[j].CapturedAt)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// captureTime extracts an embedded YYYYMMDDhhmmss stamp from an export name.
// Exports named by the upstream system carry the stamp; ad-hoc copies fall
// back to the file's modification time.
func captureTime(name string, fallback time.Time) time.Time {
	match := captureTimeExpr.FindStringSubmatch(name)
	if match == nil {
		return fallback
	}
	ts, err := time.Parse("20060102150405", match[1]+match[2])
	if err != nil {
		return fallback
	}
	return ts
}

func parseTable(fileName string, payload []byte) ([]string, [][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) ([]string, [][]string, error) {
	buffered := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = buffered.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(buffered)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records)
}

func parseExcel(payload []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows)
}

// normalizeTable treats the first non-empty row as the header and pads every
// data row to the header width.
func normalizeTable(records [][]string) ([]string, [][]string, error) {
	if len(records) == 0 {
		return nil, nil, errors.New("no rows found in file")
	}

	var headerRow []string
	var dataRows [][]string
	for _, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
	}
	if headerRow == nil {
		return nil, nil, errors.New("header row could not be detected")
	}

	headers := sanitizeHeaders(headerRow)
	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}
	return headers, filterEmptyRows(dataRows), nil
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

// sanitizeHeaders converts raw column names to lower snake_case and suffixes
// duplicates so every column keys a distinct map entry.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func filterEmptyRows(rows [][]string) [][]string {
	var filtered [][]string
	for _, row := range rows {
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				filtered = append(filtered, row)
				break
			}
		}
	}
	return filtered
}
