package classeviva

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cverrors "github.com/jrsteele09/go-classeviva/internal/errors"
	"github.com/jrsteele09/go-classeviva/internal/utils"
	"github.com/jrsteele09/go-classeviva/users"
	"github.com/pkg/errors"
)

// endpoint is one catalogue entry: the path template, verb, audience
// namespace, envelope field to unwrap and which account id the URL takes.
// Every data-retrieval method is this table plus a typed unwrap.
type endpoint struct {
	path     string
	method   string
	audience audience
	key      string
	useIdent bool
}

var (
	epGrades      = endpoint{path: "/grades", key: "grades"}
	epAbsences    = endpoint{path: "/absences/details", key: "events"}
	epAgenda      = endpoint{path: "/agenda/all/%s/%s", key: "agenda"}
	epAgendaCode  = endpoint{path: "/agenda/%s/%s/%s", key: "agenda"}
	epDocuments   = endpoint{path: "/documents", method: http.MethodPost, key: "documents"}
	epCheckDoc    = endpoint{path: "/documents/check/%s", method: http.MethodPost, key: "document"}
	epNoticeboard = endpoint{path: "/noticeboard", key: "items"}
	epCalendar    = endpoint{path: "/calendar/all", key: "calendar"}
	epLessonsDay  = endpoint{path: "/lessons/%s", key: "lessons"}
	epLessonsSpan = endpoint{path: "/lessons/%s/%s", key: "lessons"}
	epNotes       = endpoint{path: "/notes/all"} // whole body, four note families
	epPeriods     = endpoint{path: "/periods", key: "periods"}
	epSubjects    = endpoint{path: "/subjects", key: "subjects"}
	epDidactics   = endpoint{path: "/didactics", key: "didacticts"} // spelling is the platform's
	epCard        = endpoint{path: "/card", audience: audUsers, key: "card", useIdent: true}
	epTalkOptions = endpoint{path: "/talks/options", audience: audParents, key: "options"}
	epTalks       = endpoint{path: "/talks/teachers", audience: audParents, key: "teachers"}
	epTerms       = endpoint{path: "/terms_agreement", audience: audUsers, key: "agreement", useIdent: true}
	epSetTerms    = endpoint{path: "/terms_agreement", method: http.MethodPost, audience: audUsers, key: "succeeded", useIdent: true}
	epReadNotice  = endpoint{path: "/noticeboard/read/%s/%d/101", method: http.MethodPost, key: "item"}
	epReadDoc     = endpoint{path: "/documents/read/%s", method: http.MethodPost}
)

// Grade is one mark in the register.
type Grade struct {
	SubjectID      int     `json:"subjectId"`
	SubjectCode    string  `json:"subjectCode"`
	SubjectDesc    string  `json:"subjectDesc"`
	EventID        int     `json:"evtId"`
	EventCode      string  `json:"evtCode"`
	EventDate      string  `json:"evtDate"`
	DecimalValue   float64 `json:"decimalValue"`
	DisplayValue   string  `json:"displayValue"`
	Color          string  `json:"color"`
	PeriodDesc     string  `json:"periodDesc"`
	ComponentDesc  string  `json:"componentDesc"`
	TeacherComment string  `json:"notesForFamily"`
}

// AbsenceEvent is one absence, delay or early exit.
type AbsenceEvent struct {
	EventID         int    `json:"evtId"`
	EventCode       string `json:"evtCode"`
	EventDate       string `json:"evtDate"`
	EventHourPos    int    `json:"evtHPos"`
	EventValue      int    `json:"evtValue"`
	Justified       bool   `json:"isJustified"`
	JustifiedReason string `json:"justifReasonDesc"`
}

// AgendaEvent is one agenda entry (homework, note or generic event).
type AgendaEvent struct {
	EventID       int    `json:"evtId"`
	EventCode     string `json:"evtCode"`
	DatetimeBegin string `json:"evtDatetimeBegin"`
	DatetimeEnd   string `json:"evtDatetimeEnd"`
	FullDay       bool   `json:"isFullDay"`
	Notes         string `json:"notes"`
	AuthorName    string `json:"authorName"`
	ClassDesc     string `json:"classDesc"`
	SubjectID     int    `json:"subjectId"`
	SubjectDesc   string `json:"subjectDesc"`
	HomeworkID    int    `json:"homeworkId"`
}

// Document is one school document or report available for download.
type Document struct {
	DocumentID int    `json:"docId"`
	Hash       string `json:"hash"`
	Filename   string `json:"filename"`
	Title      string `json:"title"`
	Category   string `json:"cntCategory"`
	Date       string `json:"pubDT"`
}

// DocumentStatus reports whether a document is available for reading.
type DocumentStatus struct {
	Available bool `json:"available"`
}

// NoticeboardItem is one noticeboard publication.
type NoticeboardItem struct {
	PublicationID  int                `json:"pubId"`
	PublishedAt    string             `json:"pubDT"`
	Read           bool               `json:"readStatus"`
	EventCode      string             `json:"evtCode"`
	ValidFrom      string             `json:"cntValidFrom"`
	ValidTo        string             `json:"cntValidTo"`
	Title          string             `json:"cntTitle"`
	Category       string             `json:"cntCategory"`
	HasAttachments bool               `json:"cntHasAttach"`
	NeedJoin       bool               `json:"needJoin"`
	NeedReply      bool               `json:"needReply"`
	Attachments    []NoticeAttachment `json:"attachments"`
}

// NoticeAttachment is one file attached to a noticeboard item.
type NoticeAttachment struct {
	Filename  string `json:"fileName"`
	AttachNum int    `json:"attachNum"`
}

// CalendarDay is one day of the school calendar.
type CalendarDay struct {
	Date      string `json:"dayDate"`
	DayOfWeek int    `json:"dayOfWeek"`
	Status    string `json:"dayStatus"` // SD school day, NW non working, HD holiday
}

// Lesson is one register lesson entry.
type Lesson struct {
	EventID     int    `json:"evtId"`
	Date        string `json:"evtDate"`
	EventCode   string `json:"evtCode"`
	HourPos     int    `json:"evtHPos"`
	Duration    int    `json:"evtDuration"`
	ClassDesc   string `json:"classDesc"`
	AuthorName  string `json:"authorName"`
	SubjectID   int    `json:"subjectId"`
	SubjectCode string `json:"subjectCode"`
	SubjectDesc string `json:"subjectDesc"`
	LessonType  string `json:"lessonType"`
	LessonArg   string `json:"lessonArg"`
}

// Note is one disciplinary or teacher note.
type Note struct {
	EventID     int    `json:"evtId"`
	EventText   string `json:"evtText"`
	EventDate   string `json:"evtDate"`
	AuthorName  string `json:"authorName"`
	ReadStatus  bool   `json:"readStatus"`
	WarningType string `json:"warningType"`
}

// Notes groups the four note families the register distinguishes. The field
// names follow the platform's codes.
type Notes struct {
	Teacher      []Note `json:"NTTE"` // note by teacher
	Registration []Note `json:"NTCL"` // disciplinary note
	Warning      []Note `json:"NTWN"` // warning
	Sanction     []Note `json:"NTST"` // sanction
}

// Period is one grading period of the school year.
type Period struct {
	Code       string `json:"periodCode"`
	Position   int    `json:"periodPos"`
	Desc       string `json:"periodDesc"`
	Final      bool   `json:"isFinal"`
	DateStart  string `json:"dateStart"`
	DateEnd    string `json:"dateEnd"`
	MiurDivide string `json:"miurDivisionCode"`
}

// Subject is one taught subject with its teachers.
type Subject struct {
	ID          int       `json:"id"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	Teachers    []Teacher `json:"teachers"`
}

// Teacher identifies one teacher of a subject.
type Teacher struct {
	ID   string `json:"teacherId"`
	Name string `json:"teacherName"`
}

// DidacticsItem is one teacher's folder tree of teaching material.
type DidacticsItem struct {
	TeacherID        string           `json:"teacherId"`
	TeacherName      string           `json:"teacherName"`
	TeacherFirstName string           `json:"teacherFirstName"`
	Folders          []DidacticFolder `json:"folders"`
}

// DidacticFolder is one folder of teaching material.
type DidacticFolder struct {
	FolderID   int    `json:"folderId"`
	FolderName string `json:"folderName"`
	LastShare  string `json:"lastShareDT"`
}

// TalkOption is one bookable slot option for parent-teacher talks.
type TalkOption struct {
	ID       int    `json:"id"`
	TeacherD string `json:"teacherDesc"`
	Slot     string `json:"slot"`
}

// TalkTeacher is one teacher offering parent talks.
type TalkTeacher struct {
	ID       string `json:"teacherId"`
	Name     string `json:"teacherName"`
	Subjects string `json:"subjects"`
}

// TermsAgreement is the account's privacy/terms acceptance state.
type TermsAgreement struct {
	Accepted     bool   `json:"accepted"`
	AcceptedOn   string `json:"acceptedOn"`
	ThirdParty   bool   `json:"thirdParty"`
	BitmaskValue int    `json:"bitmask"`
}

// agendaFilters are the event-class keywords the filtered agenda endpoint
// accepts.
var agendaFilters = map[string]bool{
	"AGHW": true, // homework
	"AGNT": true, // notes
	"AGCH": true, // reserved slots
}

// Grades returns every mark in the register.
func (c *Client) Grades(ctx context.Context) ([]Grade, error) {
	return getJSON[[]Grade](ctx, c, epGrades, nil)
}

// Absences returns the absence events of the school year.
func (c *Client) Absences(ctx context.Context) ([]AbsenceEvent, error) {
	return getJSON[[]AbsenceEvent](ctx, c, epAbsences, nil)
}

// Agenda returns every agenda event between start and end inclusive.
func (c *Client) Agenda(ctx context.Context, start, end time.Time) ([]AgendaEvent, error) {
	return getJSON[[]AgendaEvent](ctx, c, epAgenda, nil, utils.FormatDate(start), utils.FormatDate(end))
}

// AgendaCode returns the agenda events of one event class (AGHW homework,
// AGNT notes, AGCH reserved) between start and end.
func (c *Client) AgendaCode(ctx context.Context, filter string, start, end time.Time) ([]AgendaEvent, error) {
	if !agendaFilters[filter] {
		c.log.Error().Str("filter", filter).Msg("agenda: invalid filter")
		return nil, errors.Wrapf(cverrors.ErrInvalidFilter, "[Client.AgendaCode] %q", filter)
	}
	return getJSON[[]AgendaEvent](ctx, c, epAgendaCode, nil, filter, utils.FormatDate(start), utils.FormatDate(end))
}

// Documents returns the documents published for the account.
func (c *Client) Documents(ctx context.Context) ([]Document, error) {
	return getJSON[[]Document](ctx, c, epDocuments, nil)
}

// CheckDocument reports whether the document identified by hash can be read.
func (c *Client) CheckDocument(ctx context.Context, hash string) (DocumentStatus, error) {
	return getJSON[DocumentStatus](ctx, c, epCheckDoc, nil, hash)
}

// ReadDocument downloads the raw bytes of the document identified by hash.
func (c *Client) ReadDocument(ctx context.Context, hash string) ([]byte, error) {
	return c.fetch(ctx, request{
		path:   fmt.Sprintf(epReadDoc.path, hash),
		method: epReadDoc.method,
		binary: true,
	})
}

// Noticeboard returns the noticeboard publications.
func (c *Client) Noticeboard(ctx context.Context) ([]NoticeboardItem, error) {
	return getJSON[[]NoticeboardItem](ctx, c, epNoticeboard, nil)
}

// ReadNotice marks a noticeboard item as read and returns its refreshed
// state.
func (c *Client) ReadNotice(ctx context.Context, eventCode string, pubID int) (NoticeboardItem, error) {
	return getJSON[NoticeboardItem](ctx, c, epReadNotice, nil, eventCode, pubID)
}

// Calendar returns the full school calendar.
func (c *Client) Calendar(ctx context.Context) ([]CalendarDay, error) {
	return getJSON[[]CalendarDay](ctx, c, epCalendar, nil)
}

// Lessons returns the lessons of a single day.
func (c *Client) Lessons(ctx context.Context, day time.Time) ([]Lesson, error) {
	return getJSON[[]Lesson](ctx, c, epLessonsDay, nil, utils.FormatDate(day))
}

// LessonsRange returns the lessons between start and end inclusive.
func (c *Client) LessonsRange(ctx context.Context, start, end time.Time) ([]Lesson, error) {
	return getJSON[[]Lesson](ctx, c, epLessonsSpan, nil, utils.FormatDate(start), utils.FormatDate(end))
}

// Notes returns the four note families of the register.
func (c *Client) Notes(ctx context.Context) (Notes, error) {
	return getJSON[Notes](ctx, c, epNotes, nil)
}

// Periods returns the grading periods of the school year.
func (c *Client) Periods(ctx context.Context) ([]Period, error) {
	return getJSON[[]Period](ctx, c, epPeriods, nil)
}

// Subjects returns the taught subjects with their teachers.
func (c *Client) Subjects(ctx context.Context) ([]Subject, error) {
	return getJSON[[]Subject](ctx, c, epSubjects, nil)
}

// Didactics returns the teaching material shared by teachers.
func (c *Client) Didactics(ctx context.Context) ([]DidacticsItem, error) {
	return getJSON[[]DidacticsItem](ctx, c, epDidactics, nil)
}

// ParentsOptions returns the options available for parent-teacher talks.
func (c *Client) ParentsOptions(ctx context.Context) ([]TalkOption, error) {
	return getJSON[[]TalkOption](ctx, c, epTalkOptions, nil)
}

// Talks returns the teachers offering parent talks.
func (c *Client) Talks(ctx context.Context) ([]TalkTeacher, error) {
	return getJSON[[]TalkTeacher](ctx, c, epTalks, nil)
}

// TermsAgreement returns the account's terms acceptance state.
func (c *Client) TermsAgreement(ctx context.Context) (TermsAgreement, error) {
	return getJSON[TermsAgreement](ctx, c, epTerms, nil)
}

// SetTermsAgreement records the third-party data consent flag.
func (c *Client) SetTermsAgreement(ctx context.Context, thirdParty bool) (bool, error) {
	body := map[string]bool{"thirdParty": thirdParty}
	return getJSON[bool](ctx, c, epSetTerms, body)
}

// Card fetches the account card and enriches the profile with the school
// descriptor and account type.
func (c *Client) Card(ctx context.Context) (users.Card, error) {
	card, err := getJSON[users.Card](ctx, c, epCard, nil)
	if err != nil {
		return users.Card{}, err
	}
	if card != (users.Card{}) {
		c.mu.Lock()
		c.user.ApplyCard(card)
		c.mu.Unlock()
	}
	return card, nil
}
