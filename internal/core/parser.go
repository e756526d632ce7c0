package core

// parser.go reads an import workbook into typed rows.
//
// Parsing is deliberately permissive. A missing sheet yields no rows, a
// missing column or cell reads as "", and every field is coerced by the
// normalizers in normalize.go. The only failure is a file that is not a
// workbook at all; everything else is left for the validator to report.

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column headers per sheet, in template order. Header matching is case-sensitive.
var (
	CustomerColumns = []string{
		"action", "bcCustomerNumber", "name", "customerCategory", "customerTypeGroup",
		"voyadoId", "norceCode", "sitooCustomerNumber", "isActive", "isMunicipalityPayer",
	}
	ContactColumns = []string{
		"action", "voyadoId", "firstName", "lastName", "email", "phone",
		"contactType", "isTeacher", "linkedBcCustomerNumbers",
	}
	PayerColumns = []string{
		"action", "customerBcNumber", "payerBcNumber",
	}
)

// sheetColumns returns the expected headers for a sheet.
func sheetColumns(sheet string) []string {
	switch sheet {
	case SheetCustomers:
		return CustomerColumns
	case SheetContacts:
		return ContactColumns
	case SheetPayers:
		return PayerColumns
	default:
		return nil
	}
}

// headerIndex maps exact header text to its column position.
type headerIndex map[string]int

func makeHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		key := CleanCell(h)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// sheetRow is one data row with header-based cell access.
type sheetRow struct {
	number int
	cells  []string
	idx    headerIndex
}

// cell returns the cleaned value of a column, or "" when absent.
func (r sheetRow) cell(name string) string {
	pos, ok := r.idx[name]
	if !ok || pos >= len(r.cells) {
		return ""
	}
	return CleanCell(r.cells[pos])
}

// ParseWorkbook reads the Customers, Contacts and Payers sheets from r.
func ParseWorkbook(r io.Reader) (*ParsedWorkbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}

	result := &ParsedWorkbook{Headers: make(map[string][]string)}

	for _, sheet := range []string{SheetCustomers, SheetContacts, SheetPayers} {
		if !present[sheet] {
			continue
		}

		header, rows, err := readSheet(f, sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %s: %v", ErrUnreadableWorkbook, sheet, err)
		}
		if header == nil {
			continue
		}
		result.Headers[sheet] = header

		for _, row := range rows {
			switch sheet {
			case SheetCustomers:
				result.Customers = append(result.Customers, buildCustomerRow(row))
			case SheetContacts:
				result.Contacts = append(result.Contacts, buildContactRow(row))
			case SheetPayers:
				result.Payers = append(result.Payers, buildPayerRow(row))
			}
		}
	}

	return result, nil
}

// readSheet returns the cleaned header and the non-blank data rows of a sheet.
// Row numbers match the spreadsheet: the first data row is 2.
func readSheet(f *excelize.File, sheet string) ([]string, []sheetRow, error) {
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}

	header := make([]string, len(raw[0]))
	for i, h := range raw[0] {
		header[i] = CleanCell(h)
	}
	idx := makeHeaderIndex(header)

	rows := make([]sheetRow, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		if isBlankRow(raw[i]) {
			continue
		}
		rows = append(rows, sheetRow{number: i + 1, cells: raw[i], idx: idx})
	}
	return header, rows, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func buildCustomerRow(r sheetRow) ImportCustomerRow {
	return ImportCustomerRow{
		RowNumber:           r.number,
		Action:              ParseAction(r.cell("action")),
		BcCustomerNumber:    r.cell("bcCustomerNumber"),
		Name:                r.cell("name"),
		CustomerCategory:    NormalizeCategory(r.cell("customerCategory")),
		CustomerTypeGroup:   NormalizeTypeGroup(r.cell("customerTypeGroup")),
		VoyadoID:            r.cell("voyadoId"),
		NorceCode:           r.cell("norceCode"),
		SitooCustomerNumber: r.cell("sitooCustomerNumber"),
		IsActive:            ParseBool(r.cell("isActive")),
		IsMunicipalityPayer: ParseBool(r.cell("isMunicipalityPayer")),
	}
}

func buildContactRow(r sheetRow) ImportContactRow {
	return ImportContactRow{
		RowNumber:               r.number,
		Action:                  ParseAction(r.cell("action")),
		VoyadoID:                r.cell("voyadoId"),
		FirstName:               r.cell("firstName"),
		LastName:                r.cell("lastName"),
		Email:                   r.cell("email"),
		Phone:                   r.cell("phone"),
		ContactType:             NormalizeContactType(r.cell("contactType")),
		IsTeacher:               ParseBool(r.cell("isTeacher")),
		LinkedBcCustomerNumbers: SplitList(r.cell("linkedBcCustomerNumbers")),
	}
}

func buildPayerRow(r sheetRow) ImportPayerRow {
	return ImportPayerRow{
		RowNumber:        r.number,
		Action:           ParseAction(r.cell("action")),
		CustomerBcNumber: r.cell("customerBcNumber"),
		PayerBcNumber:    r.cell("payerBcNumber"),
	}
}
