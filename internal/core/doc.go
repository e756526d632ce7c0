// Package core provides the business logic for customer workbook imports.
//
// This package contains all domain logic independent of any UI or transport
// layer. It is used by the HTTP handlers, the importer CLI and tests without
// modification.
//
// # Pipeline
//
// An import moves through three stages:
//
//  1. [ParseWorkbook] reads the Customers, Contacts and Payers sheets into
//     typed rows, normalizing enum and boolean cells.
//  2. [Validate] checks the rows against a [Snapshot] of storage and returns
//     a [ValidationReport]. Any ERROR issue blocks the import.
//  3. [Executor.Execute] applies Customers, then Contacts, then Payers through
//     a [Store], writing one [AuditEntry] per mutated record and a final
//     import_completed entry.
//
// [Service] wraps the pipeline for callers: it keeps validated previews until
// an operator confirms them, admits one import at a time through an
// [ImportLimiter] and supports dry runs against a [MemoryStore] copy.
//
// # Storage
//
// The core only sees the [Store] and [AuditSink] interfaces. The PostgreSQL
// implementation lives in internal/database; [MemoryStore] and
// [MemoryAuditSink] back dry runs and tests.
//
// There is no transaction around an import. Each row commits on its own and
// a storage failure stops the batch; [ImportSummary.Outcomes] records what
// happened to every row so a narrowed batch can be re-run.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL004: Validation errors (blocked import, unknown values)
//   - FILE001-FILE004: File errors (size, format)
//   - IMP001-IMP006: Import errors (in progress, expired preview, actor)
package core
