package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

// sheetData is one sheet of a test workbook: header first, then data rows.
type sheetData struct {
	name string
	rows [][]string
}

// buildWorkbook writes an xlsx file with the given sheets.
func buildWorkbook(t *testing.T, sheets ...sheetData) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("NewSheet(%s): %v", s.name, err)
		}
		for i, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			values := make([]any, len(row))
			for j, v := range row {
				values[j] = v
			}
			if err := f.SetSheetRow(s.name, cell, &values); err != nil {
				t.Fatalf("SetSheetRow(%s, %s): %v", s.name, cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func customersSheet(rows ...[]string) sheetData {
	return sheetData{name: SheetCustomers, rows: append([][]string{CustomerColumns}, rows...)}
}

func contactsSheet(rows ...[]string) sheetData {
	return sheetData{name: SheetContacts, rows: append([][]string{ContactColumns}, rows...)}
}

func payersSheet(rows ...[]string) sheetData {
	return sheetData{name: SheetPayers, rows: append([][]string{PayerColumns}, rows...)}
}

func TestParseWorkbook_CustomerRowNormalized(t *testing.T) {
	buf := buildWorkbook(t, customersSheet(
		[]string{"CREATE", "", "Acme", "foretag", "b2b", "", "", "", "TRUE", ""},
	))

	wb, err := ParseWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseWorkbook() error = %v", err)
	}

	want := []ImportCustomerRow{{
		RowNumber:         2,
		Action:            ActionCreate,
		Name:              "Acme",
		CustomerCategory:  Enum[CustomerCategory]{Value: CategoryCompany, Raw: "foretag", Known: true},
		CustomerTypeGroup: Enum[CustomerTypeGroup]{Value: TypeGroupB2B, Raw: "b2b", Known: true},
		IsActive:          true,
	}}
	if diff := cmp.Diff(want, wb.Customers); diff != "" {
		t.Errorf("Customers mismatch (-want +got):\n%s", diff)
	}
	if len(wb.Contacts) != 0 || len(wb.Payers) != 0 {
		t.Errorf("missing sheets should yield no rows, got %d contacts, %d payers", len(wb.Contacts), len(wb.Payers))
	}
}

func TestParseWorkbook_ContactAndPayerRows(t *testing.T) {
	buf := buildWorkbook(t,
		contactsSheet([]string{"create", "V1", "Anna", "A", "a@x.com", "", "larare", "ja", "BC-1, BC-2,"}),
		payersSheet([]string{"delete", "BC-1", ""}),
	)

	wb, err := ParseWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseWorkbook() error = %v", err)
	}

	wantContacts := []ImportContactRow{{
		RowNumber:               2,
		Action:                  ActionCreate,
		VoyadoID:                "V1",
		FirstName:               "Anna",
		LastName:                "A",
		Email:                   "a@x.com",
		ContactType:             Enum[ContactType]{Value: ContactTeacher, Raw: "larare", Known: true},
		IsTeacher:               true,
		LinkedBcCustomerNumbers: []string{"BC-1", "BC-2"},
	}}
	if diff := cmp.Diff(wantContacts, wb.Contacts); diff != "" {
		t.Errorf("Contacts mismatch (-want +got):\n%s", diff)
	}

	wantPayers := []ImportPayerRow{{RowNumber: 2, Action: ActionDelete, CustomerBcNumber: "BC-1"}}
	if diff := cmp.Diff(wantPayers, wb.Payers); diff != "" {
		t.Errorf("Payers mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWorkbook_RowNumbering(t *testing.T) {
	buf := buildWorkbook(t, customersSheet(
		[]string{"CREATE", "BC-1", "First"},
		[]string{"", "", "", ""},
		[]string{"UPDATE", "BC-1", "Third"},
	))

	wb, err := ParseWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseWorkbook() error = %v", err)
	}

	if len(wb.Customers) != 2 {
		t.Fatalf("got %d customer rows, want 2 (blank row skipped)", len(wb.Customers))
	}
	if wb.Customers[0].RowNumber != 2 {
		t.Errorf("first RowNumber = %d, want 2", wb.Customers[0].RowNumber)
	}
	if wb.Customers[1].RowNumber != 4 {
		t.Errorf("second RowNumber = %d, want 4 (matches the sheet)", wb.Customers[1].RowNumber)
	}
	if wb.Customers[1].Action != ActionUpdate {
		t.Errorf("second Action = %q, want UPDATE", wb.Customers[1].Action)
	}
}

func TestParseWorkbook_DefaultsAndMissingCells(t *testing.T) {
	buf := buildWorkbook(t, sheetData{
		name: SheetCustomers,
		rows: [][]string{
			{"name", "action"},
			{"Short Row"},
			{"Odd Action", "MERGE"},
		},
	})

	wb, err := ParseWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseWorkbook() error = %v", err)
	}

	for _, row := range wb.Customers {
		if row.Action != ActionCreate {
			t.Errorf("row %d Action = %q, want CREATE default", row.RowNumber, row.Action)
		}
		if row.BcCustomerNumber != "" || row.IsActive {
			t.Errorf("row %d missing columns should read as empty, got %+v", row.RowNumber, row)
		}
	}
	if got := wb.Customers[0].Name; got != "Short Row" {
		t.Errorf("Name = %q, want %q", got, "Short Row")
	}
}

func TestParseWorkbook_HeaderMatchIsCaseSensitive(t *testing.T) {
	buf := buildWorkbook(t, sheetData{
		name: SheetCustomers,
		rows: [][]string{
			{"action", "Name", " bcCustomerNumber "},
			{"CREATE", "Acme", "BC-7"},
		},
	})

	wb, err := ParseWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseWorkbook() error = %v", err)
	}

	row := wb.Customers[0]
	if row.Name != "" {
		t.Errorf("Name = %q, want empty: header %q does not match %q", row.Name, "Name", "name")
	}
	if row.BcCustomerNumber != "BC-7" {
		t.Errorf("BcCustomerNumber = %q, want header matched after trimming", row.BcCustomerNumber)
	}
	if diff := cmp.Diff([]string{"action", "Name", "bcCustomerNumber"}, wb.Headers[SheetCustomers]); diff != "" {
		t.Errorf("Headers mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWorkbook_EmptyWorkbook(t *testing.T) {
	buf := buildWorkbook(t)

	wb, err := ParseWorkbook(buf)
	if err != nil {
		t.Fatalf("ParseWorkbook() error = %v", err)
	}
	if wb.TotalRows() != 0 {
		t.Errorf("TotalRows() = %d, want 0", wb.TotalRows())
	}
	if len(wb.Headers) != 0 {
		t.Errorf("Headers = %v, want none", wb.Headers)
	}
}

func TestParseWorkbook_Unreadable(t *testing.T) {
	_, err := ParseWorkbook(strings.NewReader("action,name\nCREATE,Acme\n"))
	if !errors.Is(err, ErrUnreadableWorkbook) {
		t.Errorf("ParseWorkbook(csv) error = %v, want ErrUnreadableWorkbook", err)
	}
}
