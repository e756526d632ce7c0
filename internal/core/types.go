package core

import (
	"strings"
	"time"
)

// Sheet names expected in an import workbook.
const (
	SheetCustomers = "Customers"
	SheetContacts  = "Contacts"
	SheetPayers    = "Payers"
)

// Action is the operation a row asks for.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// CustomerCategory is the business category of a customer.
type CustomerCategory string

const (
	CategoryPrivatePerson CustomerCategory = "Privatperson"
	CategoryCompany       CustomerCategory = "Företag"
	CategorySchool        CustomerCategory = "Skola"
	CategoryMunicipality  CustomerCategory = "Kommun"
	CategoryAssociation   CustomerCategory = "Förening"
	CategoryAuthority     CustomerCategory = "Myndighet"
	CategoryReseller      CustomerCategory = "Återförsäljare"
)

// CustomerTypeGroup is the sales segment of a customer.
type CustomerTypeGroup string

const (
	TypeGroupB2C CustomerTypeGroup = "B2C"
	TypeGroupB2B CustomerTypeGroup = "B2B"
	TypeGroupB2G CustomerTypeGroup = "B2G"
)

// ContactType is the role of a contact person.
type ContactType string

const (
	ContactTeacher   ContactType = "Lärare"
	ContactPrincipal ContactType = "Rektor"
	ContactPurchaser ContactType = "Inköpare"
	ContactFinance   ContactType = "Ekonomi"
	ContactAdmin     ContactType = "Administratör"
	ContactOther     ContactType = "Övrigt"
)

// Relationship types for contact-customer links.
const (
	RelationshipTeacherAtSchool = "TeacherAtSchool"
	RelationshipOther           = "Other"
)

// Enum is a normalized enumeration cell.
//
// Raw keeps the cell text as read. Known is false when the text did not map
// to any value of T; Value is then the raw text cast to T so nothing is lost.
type Enum[T ~string] struct {
	Value T
	Raw   string
	Known bool
}

// IsSet reports whether the cell held any text.
func (e Enum[T]) IsSet() bool {
	return strings.TrimSpace(e.Raw) != ""
}

// ImportCustomerRow is one row of the Customers sheet.
type ImportCustomerRow struct {
	RowNumber           int
	Action              Action
	BcCustomerNumber    string
	Name                string
	CustomerCategory    Enum[CustomerCategory]
	CustomerTypeGroup   Enum[CustomerTypeGroup]
	VoyadoID            string
	NorceCode           string
	SitooCustomerNumber string
	IsActive            bool
	IsMunicipalityPayer bool
}

// ImportContactRow is one row of the Contacts sheet.
type ImportContactRow struct {
	RowNumber               int
	Action                  Action
	VoyadoID                string
	FirstName               string
	LastName                string
	Email                   string
	Phone                   string
	ContactType             Enum[ContactType]
	IsTeacher               bool
	LinkedBcCustomerNumbers []string
}

// ImportPayerRow is one row of the Payers sheet.
type ImportPayerRow struct {
	RowNumber        int
	Action           Action
	CustomerBcNumber string
	PayerBcNumber    string
}

// ParsedWorkbook holds the typed rows of all three sheets.
// Headers holds the header row of each sheet that was present in the file.
type ParsedWorkbook struct {
	Customers []ImportCustomerRow
	Contacts  []ImportContactRow
	Payers    []ImportPayerRow
	Headers   map[string][]string
}

// TotalRows returns the number of data rows across all sheets.
func (p *ParsedWorkbook) TotalRows() int {
	return len(p.Customers) + len(p.Contacts) + len(p.Payers)
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// ValidationIssue is a single problem found on a row.
type ValidationIssue struct {
	Sheet     string   `json:"sheet"`
	RowNumber int      `json:"rowNumber"`
	Severity  Severity `json:"severity"`
	Field     string   `json:"field,omitempty"`
	Value     string   `json:"value,omitempty"`
	Message   string   `json:"message"`
}

// SheetValidationResult is the validation outcome for one sheet.
type SheetValidationResult struct {
	Sheet            string            `json:"sheet"`
	RowsRead         int               `json:"rowsRead"`
	RowsValid        int               `json:"rowsValid"`
	RowsWithWarnings int               `json:"rowsWithWarnings"`
	RowsWithErrors   int               `json:"rowsWithErrors"`
	Issues           []ValidationIssue `json:"issues"`
}

// ValidationReport bundles the three sheet results.
type ValidationReport struct {
	Customers SheetValidationResult `json:"customers"`
	Contacts  SheetValidationResult `json:"contacts"`
	Payers    SheetValidationResult `json:"payers"`
	CanImport bool                  `json:"canImport"`
}

// Sheets returns the sheet results in processing order.
func (r *ValidationReport) Sheets() []SheetValidationResult {
	return []SheetValidationResult{r.Customers, r.Contacts, r.Payers}
}

// ErrorRows returns the rows carrying at least one ERROR issue, keyed by sheet.
func (r *ValidationReport) ErrorRows() RowSet {
	set := RowSet{}
	for _, sheet := range r.Sheets() {
		for _, issue := range sheet.Issues {
			if issue.Severity == SeverityError && issue.RowNumber > 1 {
				set.Add(issue.Sheet, issue.RowNumber)
			}
		}
	}
	return set
}

// RowSet is a set of (sheet, row number) pairs.
type RowSet map[string]map[int]bool

// Add inserts a row into the set.
func (s RowSet) Add(sheet string, row int) {
	if s[sheet] == nil {
		s[sheet] = make(map[int]bool)
	}
	s[sheet][row] = true
}

// Has reports whether the row is in the set. A nil set contains nothing.
func (s RowSet) Has(sheet string, row int) bool {
	return s != nil && s[sheet][row]
}

// RowStatus is the execution outcome of a single row.
type RowStatus string

const (
	RowApplied RowStatus = "applied"
	RowSkipped RowStatus = "skipped"
	RowFailed  RowStatus = "failed"
)

// RowOutcome records what happened to one row during execution.
type RowOutcome struct {
	Sheet     string    `json:"sheet"`
	RowNumber int       `json:"rowNumber"`
	Action    Action    `json:"action"`
	Status    RowStatus `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

// ImportSummary contains the final counts of an import run.
type ImportSummary struct {
	BatchID                   string        `json:"batchId"`
	ActorID                   string        `json:"actorId"`
	CustomersCreated          int           `json:"customersCreated"`
	CustomersUpdated          int           `json:"customersUpdated"`
	CustomersDeleted          int           `json:"customersDeleted"`
	ContactsCreated           int           `json:"contactsCreated"`
	ContactsUpdated           int           `json:"contactsUpdated"`
	ContactsDeleted           int           `json:"contactsDeleted"`
	ContactLinksCreated       int           `json:"contactLinksCreated"`
	TeacherAssignmentsCreated int           `json:"teacherAssignmentsCreated"`
	PayerLinksCreated         int           `json:"payerLinksCreated"`
	PayerLinksUpdated         int           `json:"payerLinksUpdated"`
	PayerLinksDeleted         int           `json:"payerLinksDeleted"`
	RowsSkipped               int           `json:"rowsSkipped"`
	AuditFailures             int           `json:"auditFailures"`
	Outcomes                  []RowOutcome  `json:"outcomes"`
	Duration                  time.Duration `json:"duration"`
	Error                     string        `json:"error,omitempty"` // Non-empty if the run stopped early
}
