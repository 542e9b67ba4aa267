package etl

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"
	"github.com/xuri/excelize/v2"
)

// errMalformedRecord marks a single unreadable row; reading can continue past it
var errMalformedRecord = errors.New("malformed record")

// recordReader yields one record per call and io.EOF once the input is exhausted
type recordReader interface {
	Next() (*DataRecord, error)
	Close() error
}

// openReader opens a dataset file with the reader matching its format
func openReader(path string, format FileFormat, textColumn, labelColumn string) (recordReader, error) {
	switch format {
	case FormatCSV:
		return newCSVReader(path, textColumn, labelColumn)
	case FormatJSON:
		return newJSONReader(path, textColumn, labelColumn)
	case FormatParquet:
		return newParquetReader(path, textColumn, labelColumn)
	case FormatExcel:
		return newExcelReader(path, textColumn, labelColumn)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// columnIndexes locates the text and label columns in a header row
func columnIndexes(header []string, textColumn, labelColumn string) (int, int, error) {
	textIndex, labelIndex := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case textColumn:
			textIndex = i
		case labelColumn:
			labelIndex = i
		}
	}

	if textIndex < 0 || labelIndex < 0 {
		return 0, 0, fmt.Errorf("header %v must contain columns %q and %q", header, textColumn, labelColumn)
	}

	return textIndex, labelIndex, nil
}

// cell returns the value at index or an empty string for short rows
func cell(row []string, index int) string {
	if index < len(row) {
		return row[index]
	}
	return ""
}

type csvReader struct {
	file       *os.File
	reader     *csv.Reader
	textIndex  int
	labelIndex int
}

func newCSVReader(path, textColumn, labelColumn string) (*csvReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	textIndex, labelIndex, err := columnIndexes(header, textColumn, labelColumn)
	if err != nil {
		file.Close()
		return nil, err
	}

	return &csvReader{file: file, reader: reader, textIndex: textIndex, labelIndex: labelIndex}, nil
}

func (r *csvReader) Next() (*DataRecord, error) {
	row, err := r.reader.Read()
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return nil, fmt.Errorf("%w: line %d: %v", errMalformedRecord, parseErr.Line, parseErr.Err)
	}
	if err != nil {
		return nil, err
	}
	return &DataRecord{Email: cell(row, r.textIndex), Type: cell(row, r.labelIndex)}, nil
}

func (r *csvReader) Close() error {
	return r.file.Close()
}

type jsonReader struct {
	file        *os.File
	decoder     *json.Decoder
	textColumn  string
	labelColumn string
}

func newJSONReader(path, textColumn, labelColumn string) (*jsonReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}

	return &jsonReader{
		file:        file,
		decoder:     json.NewDecoder(file),
		textColumn:  textColumn,
		labelColumn: labelColumn,
	}, nil
}

func (r *jsonReader) Next() (*DataRecord, error) {
	var object map[string]interface{}
	if err := r.decoder.Decode(&object); err != nil {
		return nil, err
	}

	return &DataRecord{
		Email: stringField(object[r.textColumn]),
		Type:  stringField(object[r.labelColumn]),
	}, nil
}

func (r *jsonReader) Close() error {
	return r.file.Close()
}

// stringField renders a decoded JSON value, treating null as missing
func stringField(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type parquetReader struct {
	file        *os.File
	reader      *parquet.Reader
	textColumn  int
	labelColumn int
	rows        []parquet.Row
}

func newParquetReader(path, textColumn, labelColumn string) (*parquetReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	reader := parquet.NewReader(file)
	schema := reader.Schema()

	text, ok := schema.Lookup(textColumn)
	if !ok {
		reader.Close()
		file.Close()
		return nil, fmt.Errorf("parquet schema has no column %q", textColumn)
	}
	label, ok := schema.Lookup(labelColumn)
	if !ok {
		reader.Close()
		file.Close()
		return nil, fmt.Errorf("parquet schema has no column %q", labelColumn)
	}

	return &parquetReader{
		file:        file,
		reader:      reader,
		textColumn:  text.ColumnIndex,
		labelColumn: label.ColumnIndex,
		rows:        make([]parquet.Row, 1),
	}, nil
}

func (r *parquetReader) Next() (*DataRecord, error) {
	r.rows[0] = r.rows[0][:0]
	n, err := r.reader.ReadRows(r.rows)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	record := &DataRecord{}
	for _, value := range r.rows[0] {
		if value.IsNull() {
			continue
		}
		switch value.Column() {
		case r.textColumn:
			record.Email = string(value.ByteArray())
		case r.labelColumn:
			record.Type = string(value.ByteArray())
		}
	}

	return record, nil
}

func (r *parquetReader) Close() error {
	return errors.Join(r.reader.Close(), r.file.Close())
}

type excelReader struct {
	file       *excelize.File
	rows       *excelize.Rows
	textIndex  int
	labelIndex int
}

// newExcelReader streams the first sheet of a workbook
func newExcelReader(path, textColumn, labelColumn string) (*excelReader, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		file.Close()
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	rows, err := file.Rows(sheets[0])
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	if !rows.Next() {
		rows.Close()
		file.Close()
		return nil, fmt.Errorf("sheet %s has no header row", sheets[0])
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		file.Close()
		return nil, fmt.Errorf("failed to read Excel header: %w", err)
	}

	textIndex, labelIndex, err := columnIndexes(header, textColumn, labelColumn)
	if err != nil {
		rows.Close()
		file.Close()
		return nil, err
	}

	return &excelReader{file: file, rows: rows, textIndex: textIndex, labelIndex: labelIndex}, nil
}

func (r *excelReader) Next() (*DataRecord, error) {
	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	row, err := r.rows.Columns()
	if err != nil {
		return nil, err
	}

	return &DataRecord{Email: cell(row, r.textIndex), Type: cell(row, r.labelIndex)}, nil
}

func (r *excelReader) Close() error {
	return errors.Join(r.rows.Close(), r.file.Close())
}
