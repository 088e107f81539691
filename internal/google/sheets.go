package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"barbershop/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Agendamentos"

// SheetsService appends booked appointments to a spreadsheet kept by the shop.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, loc *time.Location) (*SheetsService, error) {
	// service account credentials
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newSheetsService(srv, spreadsheetID, sheetName, loc), nil
}

func newSheetsService(srv *sheets.Service, spreadsheetID, sheetName string, loc *time.Location) *SheetsService {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	if loc == nil {
		loc = time.Local
	}
	return &SheetsService{service: srv, spreadsheetID: spreadsheetID, sheetName: sheetName, loc: loc}
}

// TestConnection checks access to the spreadsheet
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to access spreadsheet: %w", err)
	}
	return nil
}

// AppendAppointment adds one row for a booked appointment
func (s *SheetsService) AppendAppointment(ctx context.Context, apt models.Appointment) error {
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{appointmentRowValues(apt, s.loc)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:F", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append appointment %s: %w", apt.ID, err)
	}
	return nil
}

func appointmentRowValues(apt models.Appointment, loc *time.Location) []interface{} {
	local := apt.Datetime.In(loc)
	return []interface{}{
		apt.ID,
		local.Format("2006-01-02"),
		local.Format("15:04"),
		apt.Name,
		apt.Phone,
		strings.Join(apt.Services, ", "),
	}
}
