package etl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raaihank/mail-sentinel/internal/logger"
	"github.com/raaihank/mail-sentinel/internal/privacy"
	"github.com/raaihank/mail-sentinel/internal/store"
)

// Masker masks a single email body
type Masker interface {
	Mask(text string) (*privacy.Result, error)
}

// Sink receives masked records after each batch
type Sink interface {
	BatchInsertMasked(ctx context.Context, emails []*store.MaskedEmail) (*store.BatchInsertResult, error)
}

// Pipeline reads labelled email datasets and masks them for training
type Pipeline struct {
	masker Masker
	sink   Sink
	config *Config
	logger *logger.Logger
	stats  *ProcessingStats
	mu     sync.RWMutex
}

// NewPipeline creates a new ETL pipeline. sink may be nil.
func NewPipeline(masker Masker, sink Sink, config *Config, log *logger.Logger) *Pipeline {
	return &Pipeline{
		masker: masker,
		sink:   sink,
		config: config,
		logger: log.WithComponent("etl"),
		stats: &ProcessingStats{
			StartTime: time.Now(),
		},
	}
}

// ProcessFile reads a dataset file (CSV, JSON lines, Parquet or Excel) and masks every
// usable record. Records come back in file order.
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) ([]MaskedRecord, *ProcessingResult, error) {
	format, err := DetectFileFormat(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", filePath, err)
	}

	p.logger.Info("Starting ETL pipeline",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	reader, err := openReader(filePath, format, p.config.TextColumn, p.config.LabelColumn)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	return p.run(ctx, reader)
}

// ProcessRecords masks records that are already in memory
func (p *Pipeline) ProcessRecords(ctx context.Context, records []DataRecord) ([]MaskedRecord, *ProcessingResult, error) {
	return p.run(ctx, &sliceReader{records: records})
}

func (p *Pipeline) run(ctx context.Context, reader recordReader) ([]MaskedRecord, *ProcessingResult, error) {
	start := time.Now()
	result := &ProcessingResult{}
	p.resetStats()

	var (
		out          []MaskedRecord
		seen         = make(map[string]struct{})
		lastReported int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return out, result, err
		}

		batch, done, err := p.readBatch(reader, result)
		if err != nil {
			return out, result, fmt.Errorf("failed to read batch: %w", err)
		}

		if len(batch) > 0 {
			masked, err := p.processBatch(ctx, batch, result)
			if err != nil {
				return out, result, err
			}

			if p.config.SkipDuplicates {
				masked = dropDuplicates(masked, seen, result)
			}

			p.store(ctx, masked, result)
			out = append(out, masked...)
			result.ProcessedOK += int64(len(masked))

			if p.config.ProgressReport > 0 && result.TotalRecords-lastReported >= int64(p.config.ProgressReport) {
				lastReported = result.TotalRecords
				p.reportProgress(result)
			}
		}

		if done {
			break
		}
	}

	result.Duration = time.Since(start)

	p.logger.Info("ETL pipeline completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("skipped", result.Skipped),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("entities_masked", result.EntitiesMasked),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("masking_time", result.MaskingTime))

	return out, result, nil
}

// readBatch collects up to BatchSize usable records. done is true at end of input.
func (p *Pipeline) readBatch(reader recordReader, result *ProcessingResult) ([]*DataRecord, bool, error) {
	batchSize := max(p.config.BatchSize, 1)
	batch := make([]*DataRecord, 0, batchSize)

	for len(batch) < batchSize {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return batch, true, nil
		}
		if errors.Is(err, errMalformedRecord) {
			p.logger.Warn("Failed to read record", zap.Error(err))
			result.TotalRecords++
			result.ProcessedFailed++
			continue
		}
		if err != nil {
			return batch, true, err
		}

		result.TotalRecords++
		if !p.validateRecord(record) {
			result.Skipped++
			continue
		}
		batch = append(batch, record)
	}

	p.mu.Lock()
	p.stats.RecordsRead = result.TotalRecords
	p.stats.CurrentBatch++
	p.mu.Unlock()

	return batch, false, nil
}

// processBatch masks a batch with bounded parallelism, keeping input order
func (p *Pipeline) processBatch(ctx context.Context, batch []*DataRecord, result *ProcessingResult) ([]MaskedRecord, error) {
	maskStart := time.Now()
	masked := make([]*MaskedRecord, len(batch))
	failures := make([]error, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.config.WorkerCount, 1))

	for i, record := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := p.masker.Mask(record.Email)
			if err != nil {
				failures[i] = err
				return nil
			}

			masked[i] = &MaskedRecord{
				MaskedEmail: res.MaskedText,
				Type:        strings.TrimSpace(record.Type),
				TextHash:    computeTextHash(res.MaskedText),
				EntityCount: int32(len(res.Entities)),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	result.MaskingTime += time.Since(maskStart)

	out := make([]MaskedRecord, 0, len(batch))
	for i := range batch {
		if failures[i] != nil {
			// The record text is never logged
			p.logger.Warn("Failed to mask record", zap.Error(failures[i]))
			result.ProcessedFailed++
			result.Errors = append(result.Errors, failures[i].Error())
			continue
		}
		result.EntitiesMasked += int64(masked[i].EntityCount)
		out = append(out, *masked[i])
	}

	p.mu.Lock()
	p.stats.RecordsMasked += int64(len(out))
	p.mu.Unlock()

	return out, nil
}

// store hands a masked batch to the sink when one is configured
func (p *Pipeline) store(ctx context.Context, records []MaskedRecord, result *ProcessingResult) {
	if p.sink == nil || len(records) == 0 {
		return
	}

	emails := make([]*store.MaskedEmail, len(records))
	for i, r := range records {
		emails[i] = &store.MaskedEmail{
			TextHash:    r.TextHash,
			MaskedEmail: r.MaskedEmail,
			Label:       r.Type,
			EntityCount: int(r.EntityCount),
		}
	}

	dbStart := time.Now()
	batchResult, err := p.sink.BatchInsertMasked(ctx, emails)
	result.DatabaseTime += time.Since(dbStart)
	if err != nil {
		p.logger.Error("Database batch insert failed", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return
	}

	p.mu.Lock()
	p.stats.DatabaseWrites += batchResult.Inserted
	p.mu.Unlock()
}

// validateRecord drops rows missing either the email body or its label
func (p *Pipeline) validateRecord(record *DataRecord) bool {
	if strings.TrimSpace(record.Email) == "" {
		p.logger.Debug("Invalid record: empty email")
		return false
	}

	if strings.TrimSpace(record.Type) == "" {
		p.logger.Debug("Invalid record: empty type")
		return false
	}

	return true
}

// dropDuplicates removes records whose masked text was already seen
func dropDuplicates(records []MaskedRecord, seen map[string]struct{}, result *ProcessingResult) []MaskedRecord {
	kept := records[:0]
	for _, r := range records {
		if _, ok := seen[r.TextHash]; ok {
			result.Duplicates++
			continue
		}
		seen[r.TextHash] = struct{}{}
		kept = append(kept, r)
	}
	return kept
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress(result *ProcessingResult) {
	elapsed := time.Since(p.GetStats().StartTime)
	rate := float64(result.TotalRecords) / elapsed.Seconds()

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("records_ok", result.ProcessedOK),
		zap.Int64("records_failed", result.ProcessedFailed),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}

// resetStats resets processing statistics
func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats = &ProcessingStats{
		StartTime: time.Now(),
	}
}

// GetStats returns current processing statistics
func (p *Pipeline) GetStats() *ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := *p.stats
	return &stats
}

// WriteParquet exports masked records to a Parquet file
func WriteParquet(path string, records []MaskedRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[MaskedRecord](file)
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return file.Close()
}

// Split separates masked records into texts and labels
func Split(records []MaskedRecord) (texts, labels []string) {
	texts = make([]string, len(records))
	labels = make([]string, len(records))
	for i, r := range records {
		texts[i] = r.MaskedEmail
		labels[i] = r.Type
	}
	return texts, labels
}

type sliceReader struct {
	records []DataRecord
	next    int
}

func (r *sliceReader) Next() (*DataRecord, error) {
	if r.next >= len(r.records) {
		return nil, io.EOF
	}
	record := r.records[r.next]
	r.next++
	return &record, nil
}

func (r *sliceReader) Close() error {
	return nil
}

// computeTextHash computes SHA-256 hash of the given text
func computeTextHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
