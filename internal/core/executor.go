package core

// executor.go applies a validated workbook to storage.
//
// Sheets are applied Customers -> Contacts -> Payers and rows in source
// order. There is no wrapping transaction: every row commits on its own, and
// a storage failure stops the batch with everything before it committed.
// The returned summary carries a per-row outcome so a caller can re-run a
// narrowed batch.
//
// Resolution failures (a key that no longer resolves, a record that vanished
// between validation and execution) skip the row instead of failing the run.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExecuteOptions narrows an import run.
type ExecuteOptions struct {
	// Exclude lists rows that must not be applied, typically
	// ValidationReport.ErrorRows().
	Exclude RowSet
}

// Executor applies parsed rows to a Store and writes audit entries.
type Executor struct {
	store   Store
	timeout time.Duration
	sink    AuditSink
	now     func() time.Time
	keygen  func(time.Time) string
	logger  *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithClock overrides the time source used for audit timestamps and keys.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// WithKeyGenerator overrides how blank customer numbers are synthesized.
func WithKeyGenerator(gen func(time.Time) string) ExecutorOption {
	return func(e *Executor) { e.keygen = gen }
}

// WithLogger sets the logger used for run and audit events.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithOperationTimeout bounds every storage and audit call made by the executor.
func WithOperationTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an executor over store and sink. sink may be nil.
func NewExecutor(store Store, sink AuditSink, opts ...ExecutorOption) *Executor {
	e := &Executor{
		timeout: DefaultOperationTimeout,
		sink:    sink,
		now:     time.Now,
		keygen:  SyntheticCustomerNumber,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if g, ok := store.(*guardedStore); ok {
		store = g.inner
	}
	e.store = newGuardedStore(store, e.timeout)
	return e
}

// SyntheticCustomerNumber builds a best-effort unique customer number of
// the form IMP-<base36 millis>-<random>. Collisions are unlikely, not
// impossible.
func SyntheticCustomerNumber(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("IMP-%s-%s",
		strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)),
		strings.ToUpper(fmt.Sprintf("%x", id[:3])),
	)
}

// Execute applies wb on behalf of actorID.
//
// On a storage failure the partial summary is returned together with the
// error, and Summary.Error is set.
func (e *Executor) Execute(ctx context.Context, wb *ParsedWorkbook, actorID string, opts ExecuteOptions) (ImportSummary, error) {
	start := e.now()
	batchID := uuid.NewString()
	log := e.logger.With("batch_id", batchID, "actor_id", actorID)

	summary := ImportSummary{
		BatchID:  batchID,
		ActorID:  actorID,
		Outcomes: []RowOutcome{},
	}
	if actorID == "" {
		return summary, ErrActorRequired
	}
	if wb == nil {
		wb = &ParsedWorkbook{}
	}

	log.Info("import started",
		"customers", len(wb.Customers),
		"contacts", len(wb.Contacts),
		"payers", len(wb.Payers),
	)

	run := &importRun{
		store:   e.store,
		keygen:  e.keygen,
		now:     e.now,
		log:     log,
		exclude: opts.Exclude,
		summary: &summary,
		audit: &auditor{
			sink:    e.sink,
			batchID: batchID,
			actorID: actorID,
			timeout: e.timeout,
			now:     e.now,
			logger:  log,
		},
	}

	err := run.execute(ctx, wb)

	summary.Duration = e.now().Sub(start)
	summary.AuditFailures = run.audit.failures
	if err != nil {
		summary.Error = err.Error()
	}

	// The completion entry is written with a fresh context so a cancelled
	// run still leaves a trace.
	run.audit.record(context.WithoutCancel(ctx), EntityImport, batchID, AuditImportCompleted, nil, summaryRecord(summary))
	summary.AuditFailures = run.audit.failures

	if err != nil {
		log.Error("import stopped",
			"error", err,
			"duration", summary.Duration,
		)
		return summary, err
	}

	log.Info("import completed",
		"customers_created", summary.CustomersCreated,
		"customers_updated", summary.CustomersUpdated,
		"customers_deleted", summary.CustomersDeleted,
		"contacts_created", summary.ContactsCreated,
		"contacts_updated", summary.ContactsUpdated,
		"contacts_deleted", summary.ContactsDeleted,
		"payer_links", summary.PayerLinksCreated+summary.PayerLinksUpdated+summary.PayerLinksDeleted,
		"rows_skipped", summary.RowsSkipped,
		"audit_failures", summary.AuditFailures,
		"duration", summary.Duration,
	)
	return summary, nil
}

func summaryRecord(s ImportSummary) Record {
	r := Record{
		"customers_created":           s.CustomersCreated,
		"customers_updated":           s.CustomersUpdated,
		"customers_deleted":           s.CustomersDeleted,
		"contacts_created":            s.ContactsCreated,
		"contacts_updated":            s.ContactsUpdated,
		"contacts_deleted":            s.ContactsDeleted,
		"contact_links_created":       s.ContactLinksCreated,
		"teacher_assignments_created": s.TeacherAssignmentsCreated,
		"payer_links_created":         s.PayerLinksCreated,
		"payer_links_updated":         s.PayerLinksUpdated,
		"payer_links_deleted":         s.PayerLinksDeleted,
		"rows_skipped":                s.RowsSkipped,
		"audit_failures":              s.AuditFailures,
		"duration_ms":                 s.Duration.Milliseconds(),
	}
	if s.Error != "" {
		r["error"] = s.Error
	}
	return r
}

// errSkip marks a row that could not be resolved at execution time.
type errSkip struct{ reason string }

func (e errSkip) Error() string { return e.reason }

func skipf(format string, args ...any) error {
	return errSkip{reason: fmt.Sprintf(format, args...)}
}

// importRun is the state of one Execute call. It is discarded afterwards.
type importRun struct {
	store   Store
	keygen  func(time.Time) string
	now     func() time.Time
	log     *slog.Logger
	exclude RowSet
	keys    *keyMap
	audit   *auditor
	summary *ImportSummary
}

func (r *importRun) execute(ctx context.Context, wb *ParsedWorkbook) error {
	customers, err := r.store.Find(ctx, TableCustomers, nil)
	if err != nil {
		return fmt.Errorf("load customers: %w", err)
	}
	contacts, err := r.store.Find(ctx, TableContacts, Filter{ColIsMerged: false})
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}
	r.keys = newKeyMap(customers, contacts)

	for _, row := range wb.Customers {
		if err := r.apply(ctx, SheetCustomers, row.RowNumber, row.Action, func() (string, error) {
			return r.applyCustomer(ctx, row)
		}); err != nil {
			return err
		}
	}
	for _, row := range wb.Contacts {
		if err := r.apply(ctx, SheetContacts, row.RowNumber, row.Action, func() (string, error) {
			return r.applyContact(ctx, row)
		}); err != nil {
			return err
		}
	}
	for _, row := range wb.Payers {
		if err := r.apply(ctx, SheetPayers, row.RowNumber, row.Action, func() (string, error) {
			return r.applyPayer(ctx, row)
		}); err != nil {
			return err
		}
	}
	return nil
}

// apply runs fn for one row and records its outcome. fn returns an optional
// note for applied rows; an errSkip skips the row, any other error is fatal.
func (r *importRun) apply(ctx context.Context, sheet string, rowNumber int, action Action, fn func() (string, error)) error {
	outcome := RowOutcome{Sheet: sheet, RowNumber: rowNumber, Action: action}

	if r.exclude.Has(sheet, rowNumber) {
		outcome.Status = RowSkipped
		outcome.Reason = "row has validation errors"
		r.record(outcome)
		return nil
	}
	if err := ctx.Err(); err != nil {
		outcome.Status = RowFailed
		outcome.Reason = err.Error()
		r.record(outcome)
		return fmt.Errorf("%s row %d: %w", sheet, rowNumber, err)
	}

	note, err := fn()
	var skip errSkip
	switch {
	case err == nil:
		outcome.Status = RowApplied
		outcome.Reason = note
	case errors.As(err, &skip):
		outcome.Status = RowSkipped
		outcome.Reason = skip.reason
		r.log.Debug("row skipped", "sheet", sheet, "row", rowNumber, "reason", skip.reason)
	default:
		outcome.Status = RowFailed
		outcome.Reason = err.Error()
		r.record(outcome)
		return fmt.Errorf("%s row %d: %w", sheet, rowNumber, err)
	}
	r.record(outcome)
	return nil
}

func (r *importRun) record(o RowOutcome) {
	if o.Status == RowSkipped {
		r.summary.RowsSkipped++
	}
	r.summary.Outcomes = append(r.summary.Outcomes, o)
}

// findByID reads the current state of a record. A missing record is a skip.
func (r *importRun) findByID(ctx context.Context, table Table, id string) (Record, error) {
	rows, err := r.store.Find(ctx, table, Filter{ColID: id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, skipf("%s %s no longer exists", table, id)
	}
	return rows[0], nil
}

// update applies patch, turning a vanished record into a skip.
func (r *importRun) update(ctx context.Context, table Table, id string, patch Record) (Record, error) {
	after, err := r.store.Update(ctx, table, id, patch)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, skipf("%s %s no longer exists", table, id)
	}
	return after, err
}

// ============================================================================
// Customers
// ============================================================================

func (r *importRun) applyCustomer(ctx context.Context, row ImportCustomerRow) (string, error) {
	switch row.Action {
	case ActionUpdate:
		return "", r.updateCustomer(ctx, row)
	case ActionDelete:
		return r.deleteCustomer(ctx, row)
	default:
		return r.createCustomer(ctx, row)
	}
}

func (r *importRun) createCustomer(ctx context.Context, row ImportCustomerRow) (string, error) {
	bc := row.BcCustomerNumber
	note := ""
	if bc == "" {
		bc = r.keygen(r.now())
		note = "generated bcCustomerNumber " + bc
	} else if _, exists := r.keys.customerID(bc); exists {
		return "", skipf("bcCustomerNumber %s already exists", bc)
	}

	created, err := r.store.Insert(ctx, TableCustomers, Record{
		ColBcCustomerNumber:    bc,
		ColName:                row.Name,
		ColCustomerCategory:    enumValue(row.CustomerCategory),
		ColCustomerTypeGroup:   enumValue(row.CustomerTypeGroup),
		ColVoyadoID:            nullable(row.VoyadoID),
		ColNorceCode:           nullable(row.NorceCode),
		ColSitooCustomerNumber: nullable(row.SitooCustomerNumber),
		ColIsActive:            row.IsActive,
		ColIsMunicipalityPayer: row.IsMunicipalityPayer,
	})
	if err != nil {
		return "", fmt.Errorf("insert customer: %w", err)
	}

	r.keys.addCustomer(bc, created.ID())
	r.summary.CustomersCreated++
	r.audit.record(ctx, EntityCustomer, created.ID(), AuditCreate, nil, created)
	return note, nil
}

func (r *importRun) updateCustomer(ctx context.Context, row ImportCustomerRow) error {
	id, ok := r.keys.customerID(row.BcCustomerNumber)
	if !ok {
		return skipf("target not found: bcCustomerNumber %s", row.BcCustomerNumber)
	}
	before, err := r.findByID(ctx, TableCustomers, id)
	if err != nil {
		return err
	}

	patch := Record{
		ColIsActive:            row.IsActive,
		ColIsMunicipalityPayer: row.IsMunicipalityPayer,
	}
	setText(patch, ColName, row.Name)
	setText(patch, ColVoyadoID, row.VoyadoID)
	setText(patch, ColNorceCode, row.NorceCode)
	setText(patch, ColSitooCustomerNumber, row.SitooCustomerNumber)
	if row.CustomerCategory.Known {
		patch[ColCustomerCategory] = string(row.CustomerCategory.Value)
	}
	if row.CustomerTypeGroup.Known {
		patch[ColCustomerTypeGroup] = string(row.CustomerTypeGroup.Value)
	}

	after, err := r.update(ctx, TableCustomers, id, patch)
	if err != nil {
		return err
	}
	r.summary.CustomersUpdated++
	r.audit.record(ctx, EntityCustomer, id, AuditUpdate, before, after)
	return nil
}

func (r *importRun) deleteCustomer(ctx context.Context, row ImportCustomerRow) (string, error) {
	id, ok := r.keys.customerID(row.BcCustomerNumber)
	if !ok {
		return "", skipf("target not found: bcCustomerNumber %s", row.BcCustomerNumber)
	}
	before, err := r.findByID(ctx, TableCustomers, id)
	if err != nil {
		return "", err
	}
	if !before.Bool(ColIsActive) {
		return "", skipf("customer %s is already inactive", row.BcCustomerNumber)
	}

	after, err := r.update(ctx, TableCustomers, id, Record{ColIsActive: false})
	if err != nil {
		return "", err
	}
	r.summary.CustomersDeleted++
	r.audit.record(ctx, EntityCustomer, id, AuditDelete, before, after)
	return "deactivated", nil
}

// ============================================================================
// Contacts
// ============================================================================

func (r *importRun) applyContact(ctx context.Context, row ImportContactRow) (string, error) {
	switch row.Action {
	case ActionUpdate:
		return r.updateContact(ctx, row)
	case ActionDelete:
		return r.deleteContact(ctx, row)
	default:
		return r.createContact(ctx, row)
	}
}

func (r *importRun) createContact(ctx context.Context, row ImportContactRow) (string, error) {
	if _, exists := r.keys.contactID(row.VoyadoID); exists {
		return "", skipf("voyadoId %s already exists", row.VoyadoID)
	}

	created, err := r.store.Insert(ctx, TableContacts, Record{
		ColVoyadoID:    nullable(row.VoyadoID),
		ColFirstName:   row.FirstName,
		ColLastName:    row.LastName,
		ColEmail:       row.Email,
		ColPhone:       nullable(row.Phone),
		ColContactType: enumValue(row.ContactType),
		ColIsTeacher:   row.IsTeacher,
		ColIsActive:    true,
		ColIsMerged:    false,
	})
	if err != nil {
		return "", fmt.Errorf("insert contact: %w", err)
	}

	id := created.ID()
	r.keys.addContact(row.VoyadoID, id)
	r.summary.ContactsCreated++
	r.audit.record(ctx, EntityContact, id, AuditCreate, nil, created)

	return r.linkContact(ctx, id, row, contactLinks{})
}

func (r *importRun) updateContact(ctx context.Context, row ImportContactRow) (string, error) {
	id, ok := r.keys.contactID(row.VoyadoID)
	if !ok {
		return "", skipf("target not found: voyadoId %s", row.VoyadoID)
	}
	before, err := r.findByID(ctx, TableContacts, id)
	if err != nil {
		return "", err
	}

	patch := Record{ColIsTeacher: row.IsTeacher}
	setText(patch, ColFirstName, row.FirstName)
	setText(patch, ColLastName, row.LastName)
	setText(patch, ColEmail, row.Email)
	setText(patch, ColPhone, row.Phone)
	if row.ContactType.Known {
		patch[ColContactType] = string(row.ContactType.Value)
	}

	after, err := r.update(ctx, TableContacts, id, patch)
	if err != nil {
		return "", err
	}
	r.summary.ContactsUpdated++
	r.audit.record(ctx, EntityContact, id, AuditUpdate, before, after)

	if len(row.LinkedBcCustomerNumbers) == 0 {
		return "", nil
	}
	existing, err := r.loadContactLinks(ctx, id)
	if err != nil {
		return "", err
	}
	return r.linkContact(ctx, id, row, existing)
}

func (r *importRun) deleteContact(ctx context.Context, row ImportContactRow) (string, error) {
	id, ok := r.keys.contactID(row.VoyadoID)
	if !ok {
		return "", skipf("target not found: voyadoId %s", row.VoyadoID)
	}
	before, err := r.findByID(ctx, TableContacts, id)
	if err != nil {
		return "", err
	}
	if !before.Bool(ColIsActive) {
		return "", skipf("contact %s is already inactive", row.VoyadoID)
	}

	after, err := r.update(ctx, TableContacts, id, Record{ColIsActive: false})
	if err != nil {
		return "", err
	}
	r.summary.ContactsDeleted++
	r.audit.record(ctx, EntityContact, id, AuditDelete, before, after)
	return "deactivated", nil
}

// contactLinks is what a contact is already connected to.
type contactLinks struct {
	linked     map[string]bool // customer id
	assigned   map[string]bool // school customer id
	hasPrimary bool
}

func (r *importRun) loadContactLinks(ctx context.Context, contactID string) (contactLinks, error) {
	out := contactLinks{linked: map[string]bool{}, assigned: map[string]bool{}}

	links, err := r.store.Find(ctx, TableContactCustomerLinks, Filter{ColContactID: contactID})
	if err != nil {
		return out, fmt.Errorf("load contact links: %w", err)
	}
	for _, l := range links {
		out.linked[l.String(ColCustomerID)] = true
		if l.Bool(ColIsPrimary) {
			out.hasPrimary = true
		}
	}

	assignments, err := r.store.Find(ctx, TableTeacherSchoolAssignments, Filter{ColContactID: contactID})
	if err != nil {
		return out, fmt.Errorf("load teacher assignments: %w", err)
	}
	for _, a := range assignments {
		out.assigned[a.String(ColSchoolCustomerID)] = true
	}
	return out, nil
}

// linkContact creates the missing links (and teacher assignments) for the
// row's linked customers. Only the first link a contact gets is primary.
// Unresolvable numbers are ignored and failed inserts are logged; neither
// undoes the contact itself. A teacher assignment is attempted even when
// the link to the same school failed.
func (r *importRun) linkContact(ctx context.Context, contactID string, row ImportContactRow, existing contactLinks) (string, error) {
	relationship := RelationshipOther
	if row.IsTeacher {
		relationship = RelationshipTeacherAtSchool
	}

	var problems []string
	for _, bc := range row.LinkedBcCustomerNumbers {
		customerID, ok := r.keys.customerID(bc)
		if !ok {
			problems = append(problems, "unresolved link "+bc)
			continue
		}

		if !existing.linked[customerID] {
			link, err := r.store.Insert(ctx, TableContactCustomerLinks, Record{
				ColContactID:        contactID,
				ColCustomerID:       customerID,
				ColRelationshipType: relationship,
				ColIsPrimary:        !existing.hasPrimary,
			})
			if err != nil {
				r.log.Warn("contact link failed", "contact_id", contactID, "bc_customer_number", bc, "error", err)
				problems = append(problems, "link to "+bc+" failed")
			} else {
				if existing.linked == nil {
					existing.linked = map[string]bool{}
				}
				existing.linked[customerID] = true
				existing.hasPrimary = true
				r.summary.ContactLinksCreated++
				r.audit.record(ctx, EntityContactLink, link.ID(), AuditCreate, nil, link)
			}
		}

		if row.IsTeacher && !existing.assigned[customerID] {
			assignment, err := r.store.Insert(ctx, TableTeacherSchoolAssignments, Record{
				ColContactID:        contactID,
				ColSchoolCustomerID: customerID,
			})
			if err != nil {
				r.log.Warn("teacher assignment failed", "contact_id", contactID, "bc_customer_number", bc, "error", err)
				problems = append(problems, "assignment to "+bc+" failed")
				continue
			}
			if existing.assigned == nil {
				existing.assigned = map[string]bool{}
			}
			existing.assigned[customerID] = true
			r.summary.TeacherAssignmentsCreated++
			r.audit.record(ctx, EntityTeacherAssignment, assignment.ID(), AuditCreate, nil, assignment)
		}
	}
	return strings.Join(problems, "; "), nil
}

// ============================================================================
// Payers
// ============================================================================

func (r *importRun) applyPayer(ctx context.Context, row ImportPayerRow) (string, error) {
	customerID, ok := r.keys.customerID(row.CustomerBcNumber)
	if !ok {
		return "", skipf("target not found: customerBcNumber %s", row.CustomerBcNumber)
	}
	customer, err := r.findByID(ctx, TableCustomers, customerID)
	if err != nil {
		return "", err
	}
	current := customer.String(ColPayerID)

	if row.Action == ActionDelete {
		if current == "" {
			return "", skipf("customer %s has no payer", row.CustomerBcNumber)
		}
		if _, err := r.update(ctx, TableCustomers, customerID, Record{ColPayerID: nil}); err != nil {
			return "", err
		}
		r.summary.PayerLinksDeleted++
		r.audit.record(ctx, EntityCustomer, customerID, AuditDelete, Record{ColPayerID: current}, nil)
		return "", nil
	}

	payerID, ok := r.keys.customerID(row.PayerBcNumber)
	if !ok {
		return "", skipf("payer not found: payerBcNumber %s", row.PayerBcNumber)
	}
	if _, err := r.update(ctx, TableCustomers, customerID, Record{ColPayerID: payerID}); err != nil {
		return "", err
	}

	if current != "" {
		r.summary.PayerLinksUpdated++
		r.audit.record(ctx, EntityCustomer, customerID, AuditUpdate, Record{ColPayerID: current}, Record{ColPayerID: payerID})
	} else {
		r.summary.PayerLinksCreated++
		r.audit.record(ctx, EntityCustomer, customerID, AuditCreate, nil, Record{ColPayerID: payerID})
	}
	return "", nil
}

// ============================================================================
// Helpers
// ============================================================================

// nullable stores blank optional text as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// enumValue returns the canonical value, or NULL for blank or unknown cells.
func enumValue[T ~string](e Enum[T]) any {
	if !e.Known {
		return nil
	}
	return string(e.Value)
}

// setText adds a text column to an update patch unless the cell was blank.
func setText(patch Record, col, value string) {
	if value != "" {
		patch[col] = value
	}
}
