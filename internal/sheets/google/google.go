// Package google writes the cash-flow projection to a Google Sheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fluxo/internal/core"
	"fluxo/internal/log"
)

// Exporter replaces the contents of one sheet with the projection.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Discard()
	}
	if sheetName == "" {
		sheetName = "Projection"
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentExport),
	}
}

// NewFromEnv creates an exporter authenticated with service account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, spreadsheetID, sheetName string, logger *log.Logger) (*Exporter, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheetName, logger), nil
}

func credentialsFromEnv() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	creds, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return creds, nil
}

// ExportProjection clears the sheet and writes one row per month.
func (e *Exporter) ExportProjection(ctx context.Context, months []core.MonthBucket, generatedAt time.Time) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}
	start := time.Now()

	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, e.sheetRange("A:Z"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", e.sheetName, err)
	}

	rows := projectionRows(months, generatedAt)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, e.sheetRange("A1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", e.sheetName, err)
	}

	e.logger.InfoContext(ctx, "Projection exported",
		log.FieldOperation, log.OpExport,
		"sheet", e.sheetName,
		log.FieldCount, len(months),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

func (e *Exporter) sheetRange(cells string) string {
	return fmt.Sprintf("'%s'!%s", e.sheetName, cells)
}

var header = []any{
	"Month", "Period", "Income", "Expense", "Net", "Closing balance",
	"Realized income", "Recurring income", "Card expenses", "Account expenses",
	"Recurring expenses", "Installments", "Financing", "Unavailable",
}

// projectionRows lays the buckets out as a header, one row per month and a
// trailing generation timestamp. Amounts are written as numbers.
func projectionRows(months []core.MonthBucket, generatedAt time.Time) [][]any {
	rows := make([][]any, 0, len(months)+3)
	rows = append(rows, header)
	for _, m := range months {
		b := m.Totals.Breakdown
		unavailable := make([]string, len(m.Unavailable))
		for i, k := range m.Unavailable {
			unavailable[i] = string(k)
		}
		rows = append(rows, []any{
			m.Label,
			m.Period.String(),
			m.Totals.Income.Reais(),
			m.Totals.Expense.Reais(),
			m.Totals.Net().Reais(),
			m.ClosingBalance.Reais(),
			b.RealizedIncome.Reais(),
			b.RecurringIncome.Reais(),
			b.RealizedCardExpense.Reais(),
			b.RealizedAccountExpense.Reais(),
			b.RecurringExpense.Reais(),
			b.InstallmentExpense.Reais(),
			b.FinancingExpense.Reais(),
			strings.Join(unavailable, ", "),
		})
	}
	rows = append(rows, []any{}, []any{"Generated at", generatedAt.UTC().Format(time.RFC3339)})
	return rows
}
