package logging

import (
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names a document mutation.
type AuditEventType string

const (
	// Document lifecycle
	AuditDocumentImport  AuditEventType = "document_import"
	AuditDocumentMigrate AuditEventType = "document_migrate"
	AuditDocumentReplace AuditEventType = "document_replace"
	AuditDocumentExport  AuditEventType = "document_export"

	// Section edits
	AuditSectionEdit   AuditEventType = "section_edit"
	AuditSectionSplit  AuditEventType = "section_split"
	AuditSectionAdd    AuditEventType = "section_add"
	AuditSectionDelete AuditEventType = "section_delete"
	AuditSectionRename AuditEventType = "section_rename"

	// Persistence
	AuditVersionSaved AuditEventType = "version_saved"
	AuditSaveSkipped  AuditEventType = "save_skipped"
	AuditAutosave     AuditEventType = "autosave"
)

// AuditEvent is one entry of the mutation trail.
type AuditEvent struct {
	EventType  AuditEventType
	DocumentID string
	SectionID  string
	Success    bool
	Duration   time.Duration
	Error      string
	Message    string
	Fields     map[string]interface{}
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger writes audit events to the audit category. Audit entries are
// written at info level, so they only appear in debug mode unless the
// category is explicitly disabled.
type AuditLogger struct {
	documentID string
}

// Audit returns an unscoped audit logger
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditForDocument creates an audit logger scoped to a document
func AuditForDocument(documentID string) *AuditLogger {
	return &AuditLogger{documentID: documentID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	l := Get(CategoryAudit)
	if !l.enabled(zap.InfoLevel) {
		return
	}

	if event.DocumentID == "" {
		event.DocumentID = a.documentID
	}

	fields := make([]zap.Field, 0, 6+len(event.Fields))
	fields = append(fields,
		zap.String("event", string(event.EventType)),
		zap.String("document", event.DocumentID),
		zap.Bool("success", event.Success),
	)
	if event.SectionID != "" {
		fields = append(fields, zap.String("section", event.SectionID))
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Duration("duration", event.Duration))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}

	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}
	l.sugar.Desugar().Info(msg, fields...)
}

// =============================================================================
// CONVENIENCE METHODS
// =============================================================================

// Import logs a document import
func (a *AuditLogger) Import(title string, sections, words int) {
	a.Log(AuditEvent{
		EventType: AuditDocumentImport,
		Success:   true,
		Message:   "document imported",
		Fields:    map[string]interface{}{"title": title, "sections": sections, "words": words},
	})
}

// Migrate logs a legacy document being split into sections
func (a *AuditLogger) Migrate(words, sections int) {
	a.Log(AuditEvent{
		EventType: AuditDocumentMigrate,
		Success:   true,
		Message:   "legacy content migrated",
		Fields:    map[string]interface{}{"words": words, "sections": sections},
	})
}

// SectionEdit logs a content edit; created > 0 means the edit split the section.
func (a *AuditLogger) SectionEdit(sectionID string, words, created int) {
	event := AuditEvent{
		EventType: AuditSectionEdit,
		SectionID: sectionID,
		Success:   true,
		Fields:    map[string]interface{}{"words": words},
	}
	if created > 0 {
		event.EventType = AuditSectionSplit
		event.Message = "section split on edit"
		event.Fields["created"] = created
	}
	a.Log(event)
}

// SectionOp logs an add, delete or rename.
func (a *AuditLogger) SectionOp(op AuditEventType, sectionID string, err error) {
	event := AuditEvent{EventType: op, SectionID: sectionID, Success: err == nil}
	if err != nil {
		event.Error = err.Error()
	}
	a.Log(event)
}

// VersionSaved logs a persisted version; skipped saves carry version 0.
func (a *AuditLogger) VersionSaved(version int64, hash string, d time.Duration) {
	event := AuditEvent{
		EventType: AuditVersionSaved,
		Success:   true,
		Duration:  d,
		Fields:    map[string]interface{}{"version": version, "hash": hash},
	}
	if version == 0 {
		event.EventType = AuditSaveSkipped
		event.Message = "content unchanged, save skipped"
	}
	a.Log(event)
}
