package google

import (
	"context"
	"fmt"
	"strings"

	"insight-agents/internal/models"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// SheetsScope is the read-only scope needed to load a spreadsheet.
const SheetsScope = sheets.SpreadsheetsReadonlyScope

// SheetsClient loads the first tab of a spreadsheet as rows.
type SheetsClient struct {
	svc *sheets.Service
}

func NewSheetsClient(ctx context.Context, opts ...option.ClientOption) (*SheetsClient, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetsClient{svc: svc}, nil
}

// LoadTable reads the first sheet. The first row is the header; blank header
// cells are named "Column N". Missing trailing cells become null.
func (c *SheetsClient) LoadTable(ctx context.Context, spreadsheetID string) ([]models.Row, error) {
	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields(googleapi.Field("sheets.properties.title")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet %s: %w", spreadsheetID, err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", spreadsheetID)
	}

	rangeName := quoteSheetTitle(ss.Sheets[0].Properties.Title)
	vr, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rangeName).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read values of %s: %w", rangeName, err)
	}
	return rowsFromValues(vr.Values), nil
}

func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func rowsFromValues(values [][]interface{}) []models.Row {
	if len(values) == 0 {
		return []models.Row{}
	}

	header := make([]string, len(values[0]))
	seen := make(map[string]bool, len(values[0]))
	for i, h := range values[0] {
		name := strings.TrimSpace(fmt.Sprint(h))
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		// repeated headers get a suffix so no column overwrites another
		if seen[name] {
			base := name
			for n := 2; seen[name]; n++ {
				name = fmt.Sprintf("%s (%d)", base, n)
			}
		}
		seen[name] = true
		header[i] = name
	}

	rows := make([]models.Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		cells := make([]models.Value, len(header))
		for i := range header {
			if i < len(raw) {
				cells[i] = cellValue(raw[i])
			}
		}
		rows = append(rows, models.NewRow(header, cells))
	}
	return rows
}

func cellValue(v interface{}) models.Value {
	if s, ok := v.(string); ok && s == "" {
		return models.Null()
	}
	return models.FromInterface(v)
}
