package core

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func TestWriteTemplate_ParsesCleanly(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTemplate(&buf); err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}

	wb, err := ParseWorkbook(&buf)
	if err != nil {
		t.Fatalf("ParseWorkbook(template) error = %v", err)
	}

	if diff := cmp.Diff(fullHeaders(), wb.Headers); diff != "" {
		t.Errorf("template headers mismatch (-want +got):\n%s", diff)
	}
	if len(wb.Customers) != 1 || len(wb.Contacts) != 1 || len(wb.Payers) != 1 {
		t.Fatalf("rows = %d/%d/%d, want one example per sheet", len(wb.Customers), len(wb.Contacts), len(wb.Payers))
	}

	customer := wb.Customers[0]
	if customer.CustomerCategory.Value != CategorySchool || customer.CustomerTypeGroup.Value != TypeGroupB2G {
		t.Errorf("example customer enums = %q/%q", customer.CustomerCategory.Value, customer.CustomerTypeGroup.Value)
	}
	contact := wb.Contacts[0]
	if contact.ContactType.Value != ContactTeacher || !contact.IsTeacher {
		t.Errorf("example contact = %+v, want a teacher", contact)
	}
	if diff := cmp.Diff([]string{"BC-10001"}, contact.LinkedBcCustomerNumbers); diff != "" {
		t.Errorf("example links mismatch (-want +got):\n%s", diff)
	}

	report := Validate(wb, nil)
	for _, sheet := range report.Sheets() {
		for _, issue := range sheet.Issues {
			t.Errorf("template example has issue: %+v", issue)
		}
	}
	if !report.CanImport {
		t.Error("template is not importable")
	}
}

func TestTemplateWorkbook_Layout(t *testing.T) {
	f, err := TemplateWorkbook()
	if err != nil {
		t.Fatalf("TemplateWorkbook() error = %v", err)
	}
	defer f.Close()

	want := []string{SheetCustomers, SheetContacts, SheetPayers, guideSheet}
	if diff := cmp.Diff(want, f.GetSheetList()); diff != "" {
		t.Errorf("sheet list mismatch (-want +got):\n%s", diff)
	}

	panes, err := f.GetPanes(SheetCustomers)
	if err != nil {
		t.Fatalf("GetPanes() error = %v", err)
	}
	if !panes.Freeze || panes.YSplit != 1 {
		t.Errorf("panes = %+v, want header row frozen", panes)
	}

	rows, err := f.GetRows(guideSheet)
	if err != nil {
		t.Fatalf("GetRows(guide) error = %v", err)
	}
	if len(rows) < 2 || rows[0][0] != "field" {
		t.Errorf("guide rows = %v", rows)
	}
}

func TestWriteTemplate_IsValidXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTemplate(&buf); err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	v, err := f.GetCellValue(SheetPayers, "A2")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if v != "DELETE" {
		t.Errorf("Payers!A2 = %q, want DELETE", v)
	}
}
