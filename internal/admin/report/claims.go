// Package report renders admin exports.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"farmshield/internal/admin/types"
)

const (
	claimsSheet  = "Claims"
	dateLayout   = "2006-01-02 15:04"
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	headerRow    = 3
	firstDataRow = headerRow + 1
)

var claimHeaders = []string{
	"Claim ID", "Policy Number", "Farmer", "Phone", "District", "Status",
	"Damage %", "Payout (INR)", "Finding", "Model", "Fallback", "Images", "Filed At", "Processed At",
}

// ClaimsFilename names an export generated at the given time.
func ClaimsFilename(at time.Time) string {
	return fmt.Sprintf("claims_%s.xlsx", at.Format("20060102_150405"))
}

// WriteClaims renders the rows as a single-sheet workbook: a title, the
// generation time, then one line per claim under a filterable header.
func WriteClaims(w io.Writer, rows []*types.ClaimRow, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", claimsSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2E7D32"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	set := func(col, row int, v any) {
		if err != nil {
			return
		}
		var cell string
		cell, err = excelize.CoordinatesToCellName(col, row)
		if err == nil {
			err = f.SetCellValue(claimsSheet, cell, v)
		}
	}

	set(1, 1, "Crop Insurance Claims")
	set(1, 2, "Generated: "+generatedAt.Format(dateLayout))
	for i, h := range claimHeaders {
		set(i+1, headerRow, h)
	}
	for i, r := range rows {
		row := firstDataRow + i
		c := r.Claim
		set(1, row, c.ID.String())
		set(2, row, c.PolicyNumber)
		if r.Farmer != nil {
			set(3, row, r.Farmer.Name)
			set(4, row, r.Farmer.Phone.Masked())
			set(5, row, r.Farmer.District)
		}
		set(6, row, c.Status)
		if c.DamagePercent != nil {
			set(7, row, c.DamagePercent.InexactFloat64())
		}
		set(8, row, c.Payout.InexactFloat64())
		set(9, row, c.Finding)
		set(10, row, c.ModelVersion)
		set(11, row, c.Fallback)
		set(12, row, c.Images)
		set(13, row, c.FiledAt.Format(dateLayout))
		if c.ProcessedAt != nil {
			set(14, row, c.ProcessedAt.Format(dateLayout))
		}
	}
	if err != nil {
		return fmt.Errorf("write cells: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(claimHeaders))
	if err := f.SetCellStyle(claimsSheet, "A1", "A1", titleStyle); err != nil {
		return fmt.Errorf("style title: %w", err)
	}
	headerStart := fmt.Sprintf("A%d", headerRow)
	headerEnd := fmt.Sprintf("%s%d", lastCol, headerRow)
	if err := f.SetCellStyle(claimsSheet, headerStart, headerEnd, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(claimsSheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	lastRow := max(firstDataRow+len(rows)-1, headerRow)
	if err := f.AutoFilter(claimsSheet, fmt.Sprintf("%s:%s%d", headerStart, lastCol, lastRow), nil); err != nil {
		return fmt.Errorf("auto filter: %w", err)
	}
	if err := f.SetPanes(claimsSheet, &excelize.Panes{Freeze: true, YSplit: headerRow, TopLeftCell: fmt.Sprintf("A%d", firstDataRow), ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
