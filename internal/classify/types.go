package classify

import (
	"strings"
	"time"
)

// ClassifiedType is the primary classification assigned to a capture.
type ClassifiedType string

const (
	TypeTemp     ClassifiedType = "temp"
	TypeTodo     ClassifiedType = "todo"
	TypeSchedule ClassifiedType = "schedule"
	TypeNotes    ClassifiedType = "notes"
)

var classifiedTypes = map[ClassifiedType]struct{}{
	TypeTemp:     {},
	TypeTodo:     {},
	TypeSchedule: {},
	TypeNotes:    {},
}

// ParseClassifiedType converts a string into a known ClassifiedType.
func ParseClassifiedType(value string) (ClassifiedType, bool) {
	normalized := ClassifiedType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := classifiedTypes[normalized]
	return normalized, ok
}

// NoteSubType refines notes classifications. Empty for other types.
type NoteSubType string

const (
	SubTypeInbox      NoteSubType = "inbox"
	SubTypeIdea       NoteSubType = "idea"
	SubTypeBookmark   NoteSubType = "bookmark"
	SubTypeUserFolder NoteSubType = "user_folder"
)

var noteSubTypes = map[NoteSubType]struct{}{
	SubTypeInbox:      {},
	SubTypeIdea:       {},
	SubTypeBookmark:   {},
	SubTypeUserFolder: {},
}

// ParseNoteSubType converts a string into a known NoteSubType.
func ParseNoteSubType(value string) (NoteSubType, bool) {
	normalized := NoteSubType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := noteSubTypes[normalized]
	return normalized, ok
}

// Confidence is the classifier's self-reported confidence level.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence converts a string into a known Confidence.
func ParseConfidence(value string) (Confidence, bool) {
	normalized := Confidence(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return normalized, true
	}
	return "", false
}

// DeadlineSource records whether a todo deadline came from extraction or the user.
type DeadlineSource string

const (
	DeadlineSourceAI   DeadlineSource = "ai_extracted"
	DeadlineSourceUser DeadlineSource = "user"
)

// ParseDeadlineSource converts a string into a known DeadlineSource.
// Unknown values fall back to the extracted source, matching how the
// classification service labels deadlines it found itself.
func ParseDeadlineSource(value string) DeadlineSource {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "user":
		return DeadlineSourceUser
	default:
		return DeadlineSourceAI
	}
}

// ScheduleInfo carries schedule-specific classification payload.
type ScheduleInfo struct {
	StartTime *time.Time
	EndTime   *time.Time
	Location  string
	IsAllDay  bool
}

// TodoInfo carries todo-specific classification payload.
type TodoInfo struct {
	Deadline       *time.Time
	DeadlineSource DeadlineSource
}

// Entity is a structured value the classifier extracted from capture text.
type Entity struct {
	Type            string
	Value           string
	NormalizedValue string
}

// SplitItem is one independent intent the classifier carved out of a
// capture containing several. Split items never nest.
type SplitItem struct {
	Text         string
	Type         ClassifiedType
	SubType      NoteSubType
	Confidence   Confidence
	Title        string
	Tags         []string
	ScheduleInfo *ScheduleInfo
	TodoInfo     *TodoInfo
}

// Classification is the full result returned for one capture.
type Classification struct {
	Type         ClassifiedType
	SubType      NoteSubType
	Confidence   Confidence
	Title        string
	Tags         []string
	Entities     []Entity
	ScheduleInfo *ScheduleInfo
	TodoInfo     *TodoInfo
	SplitItems   []SplitItem
}

// Request describes one classify call.
type Request struct {
	Text     string
	Source   string
	DeviceID string
}
