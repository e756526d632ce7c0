package core

// validation.go checks a parsed workbook before anything is written.
//
// Validation happens at two levels:
//  1. Header validation: expected columns missing (WARNING) or unrecognized (INFO)
//  2. Row validation: required fields per action, enum values, natural key
//     uniqueness and cross-sheet references
//
// Every rule is evaluated independently, so a row may collect several
// issues. Rows with at least one ERROR are excluded from execution and any
// ERROR anywhere blocks the batch; WARNING and INFO are advisory.
//
// A blank or unknown action cell was already read as CREATE by the parser.
// That default is intentional and is not reported here.

import (
	"fmt"
	"strings"
)

// Validator checks parsed rows against a snapshot of existing records.
type Validator struct {
	snapshot *Snapshot
}

// NewValidator creates a validator. A nil snapshot means storage is empty.
func NewValidator(snapshot *Snapshot) *Validator {
	if snapshot == nil {
		snapshot = NewSnapshot(nil, nil)
	}
	return &Validator{snapshot: snapshot}
}

// Validate checks all three sheets and returns the combined report.
func (v *Validator) Validate(wb *ParsedWorkbook) *ValidationReport {
	if wb == nil {
		wb = &ParsedWorkbook{}
	}

	batchCustomers := make(map[string]bool)
	for _, row := range wb.Customers {
		if row.Action == ActionCreate && row.BcCustomerNumber != "" {
			batchCustomers[row.BcCustomerNumber] = true
		}
	}

	report := &ValidationReport{
		Customers: v.validateCustomers(wb),
		Contacts:  v.validateContacts(wb, batchCustomers),
		Payers:    v.validatePayers(wb, batchCustomers),
	}

	report.CanImport = true
	for _, sheet := range report.Sheets() {
		for _, issue := range sheet.Issues {
			if issue.Severity == SeverityError {
				report.CanImport = false
			}
		}
	}
	return report
}

// Validate is a convenience wrapper around NewValidator(snapshot).Validate(wb).
func Validate(wb *ParsedWorkbook, snapshot *Snapshot) *ValidationReport {
	return NewValidator(snapshot).Validate(wb)
}

// issueCollector accumulates issues for one sheet and classifies its rows.
type issueCollector struct {
	sheet    string
	issues   []ValidationIssue
	errors   map[int]bool
	warnings map[int]bool
}

func newIssueCollector(sheet string) *issueCollector {
	return &issueCollector{
		sheet:    sheet,
		errors:   make(map[int]bool),
		warnings: make(map[int]bool),
	}
}

func (c *issueCollector) add(row int, sev Severity, field, value, format string, args ...any) {
	c.issues = append(c.issues, ValidationIssue{
		Sheet:     c.sheet,
		RowNumber: row,
		Severity:  sev,
		Field:     field,
		Value:     value,
		Message:   fmt.Sprintf(format, args...),
	})
	switch sev {
	case SeverityError:
		c.errors[row] = true
	case SeverityWarning:
		c.warnings[row] = true
	}
}

func (c *issueCollector) errorf(row int, field, value, format string, args ...any) {
	c.add(row, SeverityError, field, value, format, args...)
}

func (c *issueCollector) warnf(row int, field, value, format string, args ...any) {
	c.add(row, SeverityWarning, field, value, format, args...)
}

func (c *issueCollector) infof(row int, field, value, format string, args ...any) {
	c.add(row, SeverityInfo, field, value, format, args...)
}

// checkHeader reports missing and unrecognized columns on row 1.
func (c *issueCollector) checkHeader(header []string, present bool) {
	if !present {
		return
	}
	expected := sheetColumns(c.sheet)
	have := make(map[string]bool, len(header))
	for _, h := range header {
		if h != "" {
			have[h] = true
		}
	}
	for _, col := range expected {
		if !have[col] {
			c.warnf(1, col, "", "column %s not found in sheet header", col)
		}
	}
	known := make(map[string]bool, len(expected))
	for _, col := range expected {
		known[col] = true
	}
	for _, h := range header {
		if h != "" && !known[h] {
			c.infof(1, h, "", "column %s is not recognized and will be ignored", h)
		}
	}
}

// result classifies every data row and returns the sheet result.
func (c *issueCollector) result(rowNumbers []int) SheetValidationResult {
	res := SheetValidationResult{
		Sheet:    c.sheet,
		RowsRead: len(rowNumbers),
		Issues:   c.issues,
	}
	if res.Issues == nil {
		res.Issues = []ValidationIssue{}
	}
	for _, n := range rowNumbers {
		switch {
		case c.errors[n]:
			res.RowsWithErrors++
		case c.warnings[n]:
			res.RowsWithWarnings++
		default:
			res.RowsValid++
		}
	}
	return res
}

func requireKey(c *issueCollector, row int, action Action, field, value string) bool {
	if value == "" {
		c.errorf(row, field, "", "%s is required for %s", field, action)
		return false
	}
	return true
}

func (v *Validator) validateCustomers(wb *ParsedWorkbook) SheetValidationResult {
	c := newIssueCollector(SheetCustomers)
	header, present := wb.Headers[SheetCustomers]
	c.checkHeader(header, present)

	created := make(map[string]int) // bc number -> first CREATE row
	rowNumbers := make([]int, 0, len(wb.Customers))

	for _, row := range wb.Customers {
		n := row.RowNumber
		rowNumbers = append(rowNumbers, n)
		bc := row.BcCustomerNumber

		switch row.Action {
		case ActionCreate:
			if row.Name == "" {
				c.errorf(n, "name", "", "name is required for CREATE")
			}
			if !row.CustomerTypeGroup.IsSet() {
				c.errorf(n, "customerTypeGroup", "", "customerTypeGroup is required for CREATE")
			}
			switch {
			case bc == "":
				c.infof(n, "bcCustomerNumber", "", "bcCustomerNumber is blank; a number will be generated")
			case created[bc] != 0:
				c.errorf(n, "bcCustomerNumber", bc, "duplicate bcCustomerNumber %s (first created on row %d)", bc, created[bc])
			case v.snapshot.Customers[bc] != nil:
				c.errorf(n, "bcCustomerNumber", bc, "bcCustomerNumber %s already exists; use UPDATE", bc)
			}
			if bc != "" && created[bc] == 0 {
				created[bc] = n
			}

		case ActionUpdate, ActionDelete:
			if requireKey(c, n, row.Action, "bcCustomerNumber", bc) {
				if v.snapshot.Customers[bc] == nil && created[bc] == 0 {
					c.errorf(n, "bcCustomerNumber", bc, "target not found: bcCustomerNumber %s", bc)
				}
			}
		}

		if row.CustomerCategory.IsSet() && !row.CustomerCategory.Known {
			c.errorf(n, "customerCategory", row.CustomerCategory.Raw,
				"unknown category value: %s (expected one of %s)",
				row.CustomerCategory.Raw, strings.Join(knownCategories(), ", "))
		}
		if row.CustomerTypeGroup.IsSet() && !row.CustomerTypeGroup.Known {
			c.errorf(n, "customerTypeGroup", row.CustomerTypeGroup.Raw,
				"unknown type value: %s (expected one of %s)",
				row.CustomerTypeGroup.Raw, strings.Join(knownTypeGroups(), ", "))
		}
	}

	return c.result(rowNumbers)
}

func (v *Validator) validateContacts(wb *ParsedWorkbook, batchCustomers map[string]bool) SheetValidationResult {
	c := newIssueCollector(SheetContacts)
	header, present := wb.Headers[SheetContacts]
	c.checkHeader(header, present)

	created := make(map[string]int) // voyado id -> first CREATE row
	rowNumbers := make([]int, 0, len(wb.Contacts))

	for _, row := range wb.Contacts {
		n := row.RowNumber
		rowNumbers = append(rowNumbers, n)
		key := row.VoyadoID

		switch row.Action {
		case ActionCreate:
			if row.FirstName == "" {
				c.errorf(n, "firstName", "", "firstName is required for CREATE")
			}
			if row.LastName == "" {
				c.errorf(n, "lastName", "", "lastName is required for CREATE")
			}
			if row.Email == "" {
				c.errorf(n, "email", "", "email is required for CREATE")
			}
			switch {
			case key == "":
				c.infof(n, "voyadoId", "", "contact has no voyadoId and cannot be targeted by later imports")
			case created[key] != 0:
				c.errorf(n, "voyadoId", key, "duplicate voyadoId %s (first created on row %d)", key, created[key])
			case v.snapshot.Contacts[key] != nil:
				c.errorf(n, "voyadoId", key, "voyadoId %s already exists; use UPDATE", key)
			}
			if key != "" && created[key] == 0 {
				created[key] = n
			}

		case ActionUpdate, ActionDelete:
			if requireKey(c, n, row.Action, "voyadoId", key) {
				if v.snapshot.Contacts[key] == nil && created[key] == 0 {
					c.errorf(n, "voyadoId", key, "target not found: voyadoId %s", key)
				}
			}
		}

		if row.Email != "" && !strings.Contains(row.Email, "@") {
			c.warnf(n, "email", row.Email, "email format looks invalid")
		}
		if row.ContactType.IsSet() && !row.ContactType.Known {
			c.errorf(n, "contactType", row.ContactType.Raw,
				"unknown contact-type value: %s (expected one of %s)",
				row.ContactType.Raw, strings.Join(knownContactTypes(), ", "))
		}

		if row.Action == ActionDelete {
			continue
		}
		for _, bc := range row.LinkedBcCustomerNumbers {
			if v.snapshot.Customers[bc] == nil && !batchCustomers[bc] {
				c.errorf(n, "linkedBcCustomerNumbers", bc, "linked customer not found: bcCustomerNumber %s", bc)
			}
		}
		if row.IsTeacher && len(row.LinkedBcCustomerNumbers) == 0 {
			c.infof(n, "linkedBcCustomerNumbers", "", "teacher has no linked schools; no assignment will be created")
		}
	}

	return c.result(rowNumbers)
}

func (v *Validator) validatePayers(wb *ParsedWorkbook, batchCustomers map[string]bool) SheetValidationResult {
	c := newIssueCollector(SheetPayers)
	header, present := wb.Headers[SheetPayers]
	c.checkHeader(header, present)

	resolves := func(bc string) bool {
		return v.snapshot.Customers[bc] != nil || batchCustomers[bc]
	}

	targeted := make(map[string]int) // customer bc number -> first payer row
	rowNumbers := make([]int, 0, len(wb.Payers))

	for _, row := range wb.Payers {
		n := row.RowNumber
		rowNumbers = append(rowNumbers, n)
		customer, payer := row.CustomerBcNumber, row.PayerBcNumber

		if requireKey(c, n, row.Action, "customerBcNumber", customer) {
			if !resolves(customer) {
				c.errorf(n, "customerBcNumber", customer, "target not found: customerBcNumber %s", customer)
			}
			if first, dup := targeted[customer]; dup {
				c.warnf(n, "customerBcNumber", customer,
					"customer %s already has a payer row on row %d; the later row wins", customer, first)
			} else {
				targeted[customer] = n
			}
		}

		if row.Action == ActionDelete {
			if payer != "" {
				c.infof(n, "payerBcNumber", payer, "payerBcNumber is ignored for DELETE")
			}
			continue
		}

		if !requireKey(c, n, row.Action, "payerBcNumber", payer) {
			continue
		}
		if customer != "" && payer == customer {
			c.errorf(n, "payerBcNumber", payer, "self-referential payer: %s cannot pay for itself", payer)
			continue
		}
		if !resolves(payer) {
			c.errorf(n, "payerBcNumber", payer, "payer not found: payerBcNumber %s", payer)
		}
	}

	return c.result(rowNumbers)
}
