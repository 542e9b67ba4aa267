package etl

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/mail-sentinel/internal/config"
)

// ErrUnsupportedFormat is returned for dataset files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// DataRecord is a single labelled email read from the input dataset
type DataRecord struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

// MaskedRecord is a dataset record after PII masking
type MaskedRecord struct {
	MaskedEmail string `parquet:"masked_email" json:"masked_email"`
	Type        string `parquet:"type" json:"type"`
	TextHash    string `parquet:"text_hash" json:"text_hash"`
	EntityCount int32  `parquet:"entity_count" json:"entity_count"`
}

// ProcessingResult represents the result of processing a dataset
type ProcessingResult struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	Skipped         int64         `json:"skipped"`
	Duplicates      int64         `json:"duplicates"`
	EntitiesMasked  int64         `json:"entities_masked"`
	Duration        time.Duration `json:"duration"`
	MaskingTime     time.Duration `json:"masking_time"`
	DatabaseTime    time.Duration `json:"database_time"`
	Errors          []string      `json:"errors,omitempty"`
}

// Config contains ETL pipeline configuration
type Config struct {
	TextColumn     string `yaml:"text_column" mapstructure:"text_column"`         // email
	LabelColumn    string `yaml:"label_column" mapstructure:"label_column"`       // type
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`           // 1000
	WorkerCount    int    `yaml:"worker_count" mapstructure:"worker_count"`       // 4
	SkipDuplicates bool   `yaml:"skip_duplicates" mapstructure:"skip_duplicates"` // false
	ProgressReport int    `yaml:"progress_report" mapstructure:"progress_report"` // 1000
}

// ConfigFromTraining derives the pipeline settings from the training section
func ConfigFromTraining(cfg config.TrainingConfig) *Config {
	return &Config{
		TextColumn:     cfg.TextColumn,
		LabelColumn:    cfg.LabelColumn,
		BatchSize:      cfg.BatchSize,
		WorkerCount:    cfg.WorkerCount,
		SkipDuplicates: cfg.SkipDuplicates,
		ProgressReport: 1000,
	}
}

// ProcessingStats tracks real-time processing statistics
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	RecordsRead    int64     `json:"records_read"`
	RecordsMasked  int64     `json:"records_masked"`
	DatabaseWrites int64     `json:"database_writes"`
	CurrentBatch   int64     `json:"current_batch"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
	FormatExcel   FileFormat = "xlsx"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	case ".xlsx":
		return FormatExcel, nil
	default:
		return "", ErrUnsupportedFormat
	}
}
