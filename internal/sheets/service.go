package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/verification"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// outcomeColumns is the header row of a verification export sheet.
var outcomeColumns = []interface{}{
	"Invoice Number", "Vendor", "Invoice Date", "Amount", "Classification",
	"Confidence", "Matched Source ID", "Matched Fields", "Discrepancies",
	"Error", "Verified At",
}

// outcomeRange spans every export column (A to K).
const outcomeRange = "!A:K"

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// OutcomeRow is one verification result as written to the export sheet
type OutcomeRow struct {
	InvoiceNumber   string
	Vendor          string
	InvoiceDate     string
	Amount          string
	Classification  string
	Confidence      string
	MatchedSourceID string
	MatchedFields   string
	Discrepancies   string
	Error           string
	VerifiedAt      string
}

// NewSheetsService creates a new Google Sheets service. Credentials come from
// credentialsFile, or else GOOGLE_APPLICATION_CREDENTIALS / GOOGLE_CREDENTIALS.
func NewSheetsService(ctx context.Context, sheetURL, credentialsFile string) (*Service, error) {
	const op = "NewSheetsService"

	var (
		creds []byte
		err   error
	)
	if credentialsFile == "" {
		credentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if credentialsFile != "" {
		creds, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: no credentials file and neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	return NewWithOptions(ctx, sheetURL, option.WithHTTPClient(config.Client(ctx)))
}

// NewWithOptions creates a service with explicit client options, such as a
// custom endpoint and HTTP client.
func NewWithOptions(ctx context.Context, sheetURL string, opts ...option.ClientOption) (*Service, error) {
	const op = "NewWithOptions"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format: %q", url)
	}
	return matches[1], nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}

// WriteOutcomes appends verification results to sheetName, creating the
// sheet and its header row when missing.
func (s *Service) WriteOutcomes(ctx context.Context, results []verification.Result, sheetName string) error {
	const op = "WriteOutcomes"

	s.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(results)).
		Msg("Writing verification outcomes to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, sheetName); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	rows := OutcomeRows(results, time.Now())
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.values())
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		sheetName+outcomeRange,
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote verification outcomes to Google Sheet")

	return nil
}

// OutcomeRows flattens verification results into export rows.
func OutcomeRows(results []verification.Result, verifiedAt time.Time) []OutcomeRow {
	stamp := verifiedAt.UTC().Format(time.RFC3339)
	rows := make([]OutcomeRow, 0, len(results))

	for _, r := range results {
		row := OutcomeRow{
			InvoiceNumber: r.Invoice.InvoiceNumber,
			Vendor:        r.Invoice.VendorName,
			VerifiedAt:    stamp,
		}
		if !r.Invoice.InvoiceDate.IsZero() {
			row.InvoiceDate = r.Invoice.InvoiceDate.Format("2006-01-02")
		}
		if r.Invoice.TotalAmount != nil {
			row.Amount = fmt.Sprintf("%.2f", *r.Invoice.TotalAmount)
		}

		if r.Error != nil {
			row.Classification = string(r.Error.Kind)
			row.Error = r.Error.Error()
			rows = append(rows, row)
			continue
		}

		if r.Outcome != nil {
			row.Classification = string(r.Outcome.Classification)
			if best := r.Outcome.BestMatch; best != nil {
				row.Confidence = fmt.Sprintf("%.3f", best.ConfidenceScore)
				row.MatchedSourceID = best.Candidate.SourceID
				row.MatchedFields = strings.Join(best.MatchedFields, ", ")
				row.Discrepancies = describeDiscrepancies(best.Discrepancies)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func describeDiscrepancies(list []models.FieldDiscrepancy) string {
	parts := make([]string, 0, len(list))
	for _, d := range list {
		parts = append(parts, fmt.Sprintf("%s %s (expected %q, got %q)", d.FieldName, d.VarianceType, d.ExpectedValue, d.ActualValue))
	}
	return strings.Join(parts, "; ")
}

func (r OutcomeRow) values() []interface{} {
	return []interface{}{
		r.InvoiceNumber,   // A
		r.Vendor,          // B
		r.InvoiceDate,     // C
		r.Amount,          // D
		r.Classification,  // E
		r.Confidence,      // F
		r.MatchedSourceID, // G
		r.MatchedFields,   // H
		r.Discrepancies,   // I
		r.Error,           // J
		r.VerifiedAt,      // K
	}
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
			},
		}
		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil {
			sheetID = resp.Replies[0].AddSheet.Properties.SheetId
		}
	}

	headerRange := sheetName + "!A1:K1"
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{outcomeColumns}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := s.formatHeaders(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders makes the header row bold and resizes the columns
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	width := int64(len(outcomeColumns))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   width,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   width,
				},
			},
		},
	}

	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}
