// Package export renders barber earnings as spreadsheets.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"barberbook/internal/config"
	"barberbook/internal/logging"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Earnings"

var headers = []string{"Booking", "Slot", "Customer", "Services", "Payment", "Price", "Charged"}

type Exporter struct {
	path   string
	logger zerolog.Logger
	now    func() time.Time
}

func NewExporter(cfg config.ExportConfig, logger *zerolog.Logger) *Exporter {
	path := cfg.Path
	if path == "" {
		path = "exports"
	}
	return &Exporter{path: path, logger: logging.Component(logger, "export"), now: time.Now}
}

// Workbook lays the earnings out on a single sheet. Slot times are shown in loc.
func Workbook(e *models.Earnings, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Barber %d, period: %s", e.BarberID, e.Period))
	_ = f.MergeCell(sheetName, "A1", "G1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 3
	for i := range e.Bookings {
		b := &e.Bookings[i]
		names := ""
		for j, s := range b.Services {
			if j > 0 {
				names += ", "
			}
			names += s.ServiceName
		}
		charged := b.Price
		if b.FinalPrice.Valid {
			charged = b.FinalPrice.Decimal
		}

		values := []any{
			b.ID,
			b.SlotStart.In(loc).Format("2006-01-02 15:04"),
			b.CustomerName,
			names,
			b.PaymentMethod,
			b.Price.StringFixed(2),
			charged.StringFixed(2),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	totalStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), "Total")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), e.Total.StringFixed(2))
	_ = f.SetCellStyle(sheetName, fmt.Sprintf("F%d", row), fmt.Sprintf("G%d", row), totalStyle)

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	_ = f.SetColWidth(sheetName, "B", "B", 18)
	_ = f.SetColWidth(sheetName, "C", "D", 25)
	_ = f.SetColWidth(sheetName, "E", "G", 12)

	return f, nil
}

// SaveEarnings writes the workbook under the export path and returns the file path.
func (x *Exporter) SaveEarnings(e *models.Earnings, loc *time.Location) (string, error) {
	if err := os.MkdirAll(x.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Workbook(e, loc)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fileName := fmt.Sprintf("earnings_%d_%s_%s.xlsx", e.BarberID, e.Period, x.now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(x.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	x.logger.Info().Str("file_path", filePath).Int64("barber_id", e.BarberID).Msg("earnings workbook created")
	return filePath, nil
}
