package store

import (
	"strings"
	"time"

	"captor/internal/classify"
)

// CaptureSource records where a capture entered the system.
type CaptureSource string

const (
	SourceApp    CaptureSource = "app"
	SourceShare  CaptureSource = "share"
	SourceWidget CaptureSource = "widget"
	SourceSplit  CaptureSource = "split"
)

// ParseCaptureSource converts a string into a known CaptureSource.
func ParseCaptureSource(value string) (CaptureSource, bool) {
	normalized := CaptureSource(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case SourceApp, SourceShare, SourceWidget, SourceSplit:
		return normalized, true
	}
	return "", false
}

// CalendarSyncStatus tracks a schedule's external calendar state.
type CalendarSyncStatus string

const (
	SyncNotLinked         CalendarSyncStatus = "not_linked"
	SyncPending           CalendarSyncStatus = "pending"
	SyncSynced            CalendarSyncStatus = "synced"
	SyncSuggestionPending CalendarSyncStatus = "suggestion_pending"
	SyncFailed            CalendarSyncStatus = "sync_failed"
)

// System folder identifiers. Seeded by the schema; notes always land in one
// of these unless the user files them elsewhere.
const (
	FolderInbox     = "folder-system-inbox"
	FolderIdeas     = "folder-system-ideas"
	FolderBookmarks = "folder-system-bookmarks"
)

// FolderForSubType resolves the default folder for a notes classification.
func FolderForSubType(subType classify.NoteSubType) string {
	switch subType {
	case classify.SubTypeIdea:
		return FolderIdeas
	case classify.SubTypeBookmark:
		return FolderBookmarks
	default:
		return FolderInbox
	}
}

// Capture is the original user record every derived entity hangs off.
type Capture struct {
	ID              string
	OriginalText    string
	AITitle         string
	ClassifiedType  classify.ClassifiedType
	NoteSubType     classify.NoteSubType
	Confidence      classify.Confidence
	Source          CaptureSource
	ParentCaptureID string
	IsConfirmed     bool
	ConfirmedAt     *time.Time
	IsDeleted       bool
	DeletedAt       *time.Time
	ClassifiedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Todo is the derived entity for todo classifications.
type Todo struct {
	ID             string
	CaptureID      string
	Deadline       *time.Time
	DeadlineSource classify.DeadlineSource
	IsCompleted    bool
	CompletedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Schedule is the derived entity for schedule classifications.
type Schedule struct {
	ID              string
	CaptureID       string
	StartTime       *time.Time
	EndTime         *time.Time
	Location        string
	IsAllDay        bool
	Confidence      classify.Confidence
	SyncStatus      CalendarSyncStatus
	ExternalEventID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Note is the derived entity for notes classifications.
type Note struct {
	ID        string
	CaptureID string
	FolderID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtractedEntity is one structured value pulled out of capture text.
type ExtractedEntity struct {
	ID              string
	CaptureID       string
	Type            string
	Value           string
	NormalizedValue string
}

// Tag is a globally unique label linked to captures many-to-many.
type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ClassificationLog is one append-only audit row for a classification change.
type ClassificationLog struct {
	ID                        string
	CaptureID                 string
	OriginalType              classify.ClassifiedType
	OriginalSubType           classify.NoteSubType
	NewType                   classify.ClassifiedType
	NewSubType                classify.NoteSubType
	TimeSinceClassificationMS *int64
	CreatedAt                 time.Time
}
