package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/channel"
	"github.com/rovshanmuradov/solana-fanout/internal/confirm"
	"github.com/rovshanmuradov/solana-fanout/internal/dispatch"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
	"github.com/rovshanmuradov/solana-fanout/internal/trade"
	"go.uber.org/zap"
)

func generateTestResults() ([]string, []trade.Result) {
	intent := protocol.TradeIntent{
		Protocol:  "pumpfun",
		Direction: protocol.DirectionBuy,
		Asset:     solana.SolMint,
		Amount:    10_000_000,
	}
	winner := channel.Outcome{
		Channel:   "jito",
		Kind:      channel.KindBundle,
		Accepted:  true,
		Status:    confirm.StatusConfirmed,
		Signature: solana.Signature{7},
		BundleID:  "b-1",
		Elapsed:   40 * time.Millisecond,
	}
	report := &dispatch.Report{
		Outcomes: []channel.Outcome{
			{Channel: "rpc", Kind: channel.KindNode, Elapsed: 80 * time.Millisecond, Err: errors.New("node rejected")},
			winner,
		},
		Winner:    &winner,
		NonceUsed: true,
	}
	return []string{"buy-small", "stale"}, []trade.Result{
		{Intent: intent, Report: report},
		{Intent: intent, Err: errors.New("nonce is stale")},
	}
}

func TestRecords(t *testing.T) {
	names, results := generateTestResults()
	records := Records(names, results, time.Now())

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Channel != "rpc" || records[0].Accepted || records[0].Error != "node rejected" {
		t.Errorf("unexpected rpc record: %+v", records[0])
	}
	if !records[1].Winner || records[1].BundleID != "b-1" || records[1].Status != "confirmed" || !records[1].NonceUsed {
		t.Errorf("unexpected winner record: %+v", records[1])
	}
	if records[2].Task != "stale" || records[2].Channel != "" || records[2].Status != "aborted" {
		t.Errorf("unexpected aborted record: %+v", records[2])
	}
}

func TestTradeExportCSV(t *testing.T) {
	exporter := NewTradeExporter(zap.NewNop())
	names, results := generateTestResults()

	outputPath, err := exporter.ExportRecords(Records(names, results, time.Now()), ExportOptions{
		Format:    FormatCSV,
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to export records: %v", err)
	}

	file, err := os.Open(outputPath)
	if err != nil {
		t.Fatalf("Failed to open export: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if len(rows[0]) != len(CSVHeaders()) {
		t.Errorf("header has %d columns", len(rows[0]))
	}
}

func TestTradeExportJSONSummary(t *testing.T) {
	exporter := NewTradeExporter(nil)
	names, results := generateTestResults()

	outputPath, err := exporter.ExportRecords(Records(names, results, time.Now()), ExportOptions{
		Format:    FormatJSON,
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to export records: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read export file: %v", err)
	}
	var data struct {
		RecordCount int           `json:"record_count"`
		Summary     ExportSummary `json:"summary"`
	}
	if err := json.Unmarshal(content, &data); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}

	if data.RecordCount != 3 {
		t.Errorf("expected 3 records, got %d", data.RecordCount)
	}
	s := data.Summary
	if s.Attempts != 2 || s.Accepted != 1 || s.Aborted != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if jito := s.Channels["jito"]; jito.Wins != 1 || jito.AvgElapsedMS != 40 {
		t.Errorf("unexpected jito stats: %+v", jito)
	}
}

func TestExportOnlySuccess(t *testing.T) {
	exporter := NewTradeExporter(zap.NewNop())
	names, results := generateTestResults()
	records := Records(names, results, time.Now())

	if got := filterRecords(records, ExportOptions{OnlySuccess: true}); len(got) != 1 {
		t.Fatalf("expected 1 accepted record, got %d", len(got))
	}

	_, err := exporter.ExportRecords(records[2:], ExportOptions{Format: FormatCSV, OnlySuccess: true, OutputDir: t.TempDir()})
	if err == nil {
		t.Error("expected error when nothing matches")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"": FormatCSV, "csv": FormatCSV, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}
