package bot

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rovshanmuradov/solana-fanout/internal/logger"
	"github.com/rovshanmuradov/solana-fanout/internal/task"
	"github.com/rovshanmuradov/solana-fanout/internal/trade"
)

const (
	statusOK      = "ok"
	statusAborted = "aborted"
	statusFailed  = "failed"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusStyle = map[string]lipgloss.Style{
		statusOK:      cellStyle.Foreground(lipgloss.Color("2")),
		statusAborted: cellStyle.Foreground(lipgloss.Color("3")),
		statusFailed:  cellStyle.Foreground(lipgloss.Color("1")),
	}
)

func resultStatus(res trade.Result) string {
	switch {
	case res.Err == nil:
		return statusOK
	case trade.IsAborted(res.Err):
		return statusAborted
	default:
		return statusFailed
	}
}

// RenderSummary рисует таблицу итогов: по строке на выполненную задачу.
func RenderSummary(tasks []task.Task, results []trade.Result) string {
	rows := make([][]string, 0, len(results))
	for i, res := range results {
		name := fmt.Sprintf("#%d", i)
		if i < len(tasks) {
			name = tasks[i].TaskName
		}
		winner, sig, channels, elapsed := "-", "-", "-", "-"
		if res.Report != nil {
			channels = fmt.Sprintf("%d/%d", res.Report.Succeeded(), len(res.Report.Outcomes))
			elapsed = res.Report.Elapsed.Round(time.Millisecond).String()
			if res.Report.Winner != nil {
				winner = res.Report.Winner.Channel
				sig = logger.ShortenSignature(res.Report.Winner.Signature.String())
			}
		}
		rows = append(rows, []string{
			name,
			res.Intent.Protocol,
			string(res.Intent.Direction),
			resultStatus(res),
			winner,
			sig,
			channels,
			elapsed,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("TASK", "PROTOCOL", "SIDE", "STATUS", "WINNER", "SIGNATURE", "CHANNELS", "ELAPSED").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 && row >= 0 && row < len(rows) {
				if style, ok := statusStyle[rows[row][3]]; ok {
					return style
				}
			}
			return cellStyle
		})
	return t.String()
}
