package sink

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// valueInputOption matches how a human would type into the sheet, so dates
// and numbers keep their cell types.
const valueInputOption = "USER_ENTERED"

// SheetsSink persists records to one worksheet of a Google Sheets
// spreadsheet. Acquire it at run start with OpenSheets and pass it down
// explicitly; it holds no global state.
type SheetsSink struct {
	svc           *sheets.Service
	spreadsheetID string
	worksheet     string
}

// OpenSheets authenticates with a service-account credentials file, opens the
// spreadsheet and makes sure the master worksheet exists with its header row.
func OpenSheets(ctx context.Context, credentialsPath, spreadsheetID, worksheet string) (*SheetsSink, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	s := &SheetsSink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
	}

	if err := s.ensureWorksheet(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Rows returns the existing title -> row number mapping, skipping the header.
func (s *SheetsSink) Rows(ctx context.Context) (map[string]int, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, s.rangeRef("A:A")).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read titles: %w", err)
	}

	rows := make(map[string]int, len(resp.Values))

	for i, row := range resp.Values {
		if i == 0 || len(row) == 0 {
			continue
		}

		title, ok := row[0].(string)
		if !ok || title == "" {
			continue
		}

		// First occurrence wins; a duplicate left over from older runs keeps
		// being updated at its original row.
		if _, exists := rows[title]; !exists {
			rows[title] = i + 1
		}
	}

	return rows, nil
}

// Update overwrites the given rows in place with one batched call.
func (s *SheetsSink) Update(ctx context.Context, rows map[int][]string) error {
	if len(rows) == 0 {
		return nil
	}

	data := make([]*sheets.ValueRange, 0, len(rows))
	for rowNum, row := range rows {
		data = append(data, &sheets.ValueRange{
			Range:  s.rangeRef(fmt.Sprintf("A%d", rowNum)),
			Values: [][]interface{}{toCells(row)},
		})
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputOption,
		Data:             data,
	}

	if _, err := s.svc.Spreadsheets.Values.
		BatchUpdate(s.spreadsheetID, req).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update rows: %w", err)
	}

	return nil
}

// Append adds new rows after the current table.
func (s *SheetsSink) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = toCells(row)
	}

	if _, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.rangeRef("A:P"), &sheets.ValueRange{Values: values}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to append rows: %w", err)
	}

	return nil
}

// ensureWorksheet creates the master worksheet with its header row when the
// spreadsheet does not have it yet.
func (s *SheetsSink) ensureWorksheet(ctx context.Context) error {
	spreadsheet, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == s.worksheet {
			return nil
		}
	}

	addReq := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.worksheet},
			},
		}},
	}

	if _, err := s.svc.Spreadsheets.
		BatchUpdate(s.spreadsheetID, addReq).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create worksheet %q: %w", s.worksheet, err)
	}

	header := &sheets.ValueRange{Values: [][]interface{}{toCells(Header)}}

	if _, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, s.rangeRef("A1"), header).
		ValueInputOption(valueInputOption).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	return nil
}

func (s *SheetsSink) rangeRef(cells string) string {
	return fmt.Sprintf("'%s'!%s", s.worksheet, cells)
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}

	return cells
}
