// Package export writes appointment history to spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"barbershop/internal/models"

	"github.com/xuri/excelize/v2"
)

const SheetName = "Agendamentos"

var headers = []string{"Data", "Horário", "Cliente", "Telefone", "Serviços", "Criado em"}

// WriteHistoryXLSX writes entries as one sheet, in the given order, times in loc.
func WriteHistoryXLSX(w io.Writer, entries []models.Appointment, loc *time.Location) error {
	f, err := build(entries, loc)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveHistoryXLSX stores the workbook under dir and returns its path.
func SaveHistoryXLSX(dir string, entries []models.Appointment, loc *time.Location, now time.Time) (string, error) {
	// create the export dir if missing
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := build(entries, loc)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, fmt.Sprintf("historico_%s.xlsx", now.Format("20060102_150405")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func build(entries []models.Appointment, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	for col, title := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(SheetName, cell, title)
		_ = f.SetCellStyle(SheetName, cell, cell, style)
	}

	for i, apt := range entries {
		row := i + 2
		local := apt.Datetime.In(loc)
		created := ""
		if apt.CreatedAt != nil {
			created = apt.CreatedAt.In(loc).Format("02/01/2006 15:04")
		}

		values := []interface{}{
			local.Format("02/01/2006"),
			local.Format("15:04"),
			apt.Name,
			apt.Phone,
			strings.Join(apt.Services, ", "),
			created,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(SheetName, cell, value)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "B", 12)
	_ = f.SetColWidth(SheetName, "C", "E", 25)
	_ = f.SetColWidth(SheetName, "F", "F", 18)
	return f, nil
}
