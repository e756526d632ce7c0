package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TemplateFileName is the suggested download name of the import template.
const TemplateFileName = "customer-import-template.xlsx"

// guideSheet lists accepted values. The parser ignores it.
const guideSheet = "Guide"

// Example rows written below each header, in column order.
var templateExamples = map[string][]string{
	SheetCustomers: {
		"CREATE", "BC-10001", "Exempelskolan", "Skola", "B2G",
		"", "", "", "TRUE", "FALSE",
	},
	SheetContacts: {
		"CREATE", "V-10001", "Anna", "Andersson", "anna.andersson@example.se", "070-1234567",
		"Lärare", "TRUE", "BC-10001",
	},
	SheetPayers: {
		"DELETE", "BC-10001", "",
	},
}

// TemplateWorkbook builds the import template: one sheet per import sheet
// with the exact headers and one example row, plus a guide sheet.
// The caller must close the returned file.
func TemplateWorkbook() (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, sheet := range []string{SheetCustomers, SheetContacts, SheetPayers} {
		if i == 0 {
			err = f.SetSheetName("Sheet1", sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeTemplateSheet(f, sheet, sheetColumns(sheet), templateExamples[sheet], headerStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := writeGuideSheet(f, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteTemplate writes the import template as xlsx to w.
func WriteTemplate(w io.Writer) error {
	f, err := TemplateWorkbook()
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

func writeTemplateSheet(f *excelize.File, sheet string, header, example []string, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	if err := setRow(f, sheet, 2, example); err != nil {
		return err
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := f.SetColWidth(sheet, "A", last, 22); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeGuideSheet(f *excelize.File, style int) error {
	if _, err := f.NewSheet(guideSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", guideSheet, err)
	}

	rows := [][]string{
		{"field", "accepted values"},
		{"action", "CREATE, UPDATE, DELETE (blank means CREATE)"},
		{"customerCategory", strings.Join(knownCategories(), ", ")},
		{"customerTypeGroup", strings.Join(knownTypeGroups(), ", ")},
		{"contactType", strings.Join(knownContactTypes(), ", ")},
		{"booleans", "TRUE/FALSE, 1/0, yes/no, ja/nej"},
		{"linkedBcCustomerNumbers", "comma separated customer numbers"},
		{"bcCustomerNumber", "leave blank on CREATE to generate one"},
	}
	for i, row := range rows {
		if err := setRow(f, guideSheet, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(guideSheet, "A1", "B1", style); err != nil {
		return err
	}
	if err := f.SetColWidth(guideSheet, "A", "A", 26); err != nil {
		return err
	}
	return f.SetColWidth(guideSheet, "B", "B", 80)
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
