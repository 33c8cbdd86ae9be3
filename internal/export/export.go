package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rovshanmuradov/solana-fanout/internal/trade"
	"go.uber.org/zap"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat разбирает формат; пустая строка означает CSV.
func ParseFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format      ExportFormat
	OnlySuccess bool // только каналы, принявшие транзакцию
	OutputDir   string
}

// Record - одна попытка отправки: строка на канал каждой сделки.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Task      string    `json:"task"`
	Protocol  string    `json:"protocol"`
	Direction string    `json:"direction"`
	Mint      string    `json:"mint"`
	Amount    uint64    `json:"amount"`
	Channel   string    `json:"channel"`
	Kind      string    `json:"kind"`
	Accepted  bool      `json:"accepted"`
	Status    string    `json:"status"`
	Winner    bool      `json:"winner"`
	Signature string    `json:"signature,omitempty"`
	BundleID  string    `json:"bundle_id,omitempty"`
	Slot      uint64    `json:"slot,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
	NonceUsed bool      `json:"nonce_used"`
	Error     string    `json:"error,omitempty"`
}

// CSVHeaders returns the CSV column order used by Record.ToCSV.
func CSVHeaders() []string {
	return []string{
		"timestamp", "task", "protocol", "direction", "mint", "amount",
		"channel", "kind", "accepted", "status", "winner", "signature",
		"bundle_id", "slot", "elapsed_ms", "nonce_used", "error",
	}
}

func (r Record) ToCSV() []string {
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.Task,
		r.Protocol,
		r.Direction,
		r.Mint,
		strconv.FormatUint(r.Amount, 10),
		r.Channel,
		r.Kind,
		strconv.FormatBool(r.Accepted),
		r.Status,
		strconv.FormatBool(r.Winner),
		r.Signature,
		r.BundleID,
		strconv.FormatUint(r.Slot, 10),
		strconv.FormatInt(r.ElapsedMS, 10),
		strconv.FormatBool(r.NonceUsed),
		r.Error,
	}
}

// Records разворачивает результаты пакета в строки по каналам. Сделка,
// остановленная до отправки, даёт одну строку без канала.
func Records(names []string, results []trade.Result, at time.Time) []Record {
	var records []Record
	for i, res := range results {
		base := Record{
			Timestamp: at,
			Protocol:  res.Intent.Protocol,
			Direction: string(res.Intent.Direction),
			Mint:      res.Intent.Asset.String(),
			Amount:    res.Intent.Amount,
		}
		if i < len(names) {
			base.Task = names[i]
		}

		if res.Report == nil {
			rec := base
			rec.Status = "aborted"
			if res.Err != nil {
				rec.Error = res.Err.Error()
			}
			records = append(records, rec)
			continue
		}

		for _, out := range res.Report.Outcomes {
			rec := base
			rec.Channel = out.Channel
			rec.Kind = string(out.Kind)
			rec.Accepted = out.Accepted
			rec.Status = out.Status.String()
			rec.Winner = res.Report.Winner != nil && res.Report.Winner.Channel == out.Channel
			rec.BundleID = out.BundleID
			rec.Slot = out.Slot
			rec.ElapsedMS = out.Elapsed.Milliseconds()
			rec.NonceUsed = res.Report.NonceUsed
			if !out.Signature.IsZero() {
				rec.Signature = out.Signature.String()
			}
			if out.Err != nil {
				rec.Error = out.Err.Error()
			}
			records = append(records, rec)
		}
	}
	return records
}

// TradeExporter handles report export functionality
type TradeExporter struct {
	logger *zap.Logger
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeExporter{logger: logger.Named("export")}
}

// ExportRecords пишет отчёт в OutputDir и возвращает путь к файлу.
func (te *TradeExporter) ExportRecords(records []Record, options ExportOptions) (string, error) {
	filtered := filterRecords(records, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no records match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, generateFilename(options, time.Now()))

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Submission report exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func filterRecords(records []Record, options ExportOptions) []Record {
	var filtered []Record
	for _, rec := range records {
		if options.OnlySuccess && !rec.Accepted {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func generateFilename(options ExportOptions, now time.Time) string {
	prefix := "submissions_all"
	if options.OnlySuccess {
		prefix = "submissions_accepted"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405.000"), options.Format)
}

func exportToCSV(records []Record, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(rec.ToCSV()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func exportToJSON(records []Record, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime  time.Time     `json:"export_time"`
		RecordCount int           `json:"record_count"`
		Summary     ExportSummary `json:"summary"`
		Records     []Record      `json:"records"`
	}{
		ExportTime:  time.Now(),
		RecordCount: len(records),
		Summary:     calculateSummary(records),
		Records:     records,
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary - статистика по каналам за пакет.
type ExportSummary struct {
	Attempts int                     `json:"attempts"`
	Accepted int                     `json:"accepted"`
	Aborted  int                     `json:"aborted"`
	Channels map[string]ChannelStats `json:"channels"`
}

// ChannelStats - счётчики одного канала
type ChannelStats struct {
	Attempts     int   `json:"attempts"`
	Accepted     int   `json:"accepted"`
	Wins         int   `json:"wins"`
	AvgElapsedMS int64 `json:"avg_elapsed_ms"`
}

func calculateSummary(records []Record) ExportSummary {
	summary := ExportSummary{Channels: make(map[string]ChannelStats)}
	elapsed := make(map[string]int64)

	for _, rec := range records {
		if rec.Channel == "" {
			summary.Aborted++
			continue
		}
		summary.Attempts++

		stats := summary.Channels[rec.Channel]
		stats.Attempts++
		if rec.Accepted {
			summary.Accepted++
			stats.Accepted++
		}
		if rec.Winner {
			stats.Wins++
		}
		elapsed[rec.Channel] += rec.ElapsedMS
		summary.Channels[rec.Channel] = stats
	}

	for name, stats := range summary.Channels {
		stats.AvgElapsedMS = elapsed[name] / int64(stats.Attempts)
		summary.Channels[name] = stats
	}
	return summary
}
