package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByDocumentID struct {
	DocumentID uuid.UUID
}

func (s ByDocumentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentID)
}

type ByChapterID struct {
	ChapterID uuid.UUID
}

func (s ByChapterID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chapter_id = ?", s.ChapterID)
}

type ByChapterIDs struct {
	ChapterIDs []uuid.UUID
}

func (s ByChapterIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chapter_id IN ?", s.ChapterIDs)
}

type ByKnowledgeIDs struct {
	KnowledgeIDs []uuid.UUID
}

func (s ByKnowledgeIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("knowledge_id IN ?", s.KnowledgeIDs)
}

type ByCardID struct {
	CardID uuid.UUID
}

func (s ByCardID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("card_id = ?", s.CardID)
}

type ByCardIDs struct {
	CardIDs []uuid.UUID
}

func (s ByCardIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("card_id IN ?", s.CardIDs)
}

// ByOwner matches rows of one user; a nil user matches anonymous rows.
type ByOwner struct {
	UserID *uuid.UUID
}

func (s ByOwner) Apply(db *gorm.DB) *gorm.DB {
	if s.UserID == nil {
		return db.Where("user_id IS NULL")
	}
	return db.Where("user_id = ?", *s.UserID)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

type ByKind struct {
	Kind string
}

func (s ByKind) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("kind = ?", s.Kind)
}

// DueAt selects SRS rows due at the given instant. Rows without a due date
// are new and count as due, but never as overdue.
type DueAt struct {
	At      time.Time
	Overdue bool
}

func (s DueAt) Apply(db *gorm.DB) *gorm.DB {
	if s.Overdue {
		return db.Where("due_date IS NOT NULL AND due_date < ?", s.At)
	}
	return db.Where("due_date IS NULL OR due_date <= ?", s.At)
}

// InDocument narrows figure and knowledge rows to the chapters of one document.
type InDocument struct {
	DocumentID uuid.UUID
}

func (s InDocument) Apply(db *gorm.DB) *gorm.DB {
	chapters := db.Session(&gorm.Session{NewDB: true}).Table("chapters").Select("id").Where("document_id = ?", s.DocumentID)
	return db.Where("chapter_id IN (?)", chapters)
}

// CardsOfDocument narrows SRS rows to cards generated from one document.
type CardsOfDocument struct {
	DocumentID uuid.UUID
}

func (s CardsOfDocument) Apply(db *gorm.DB) *gorm.DB {
	cards := db.Session(&gorm.Session{NewDB: true}).Table("cards").Select("id").Where("document_id = ?", s.DocumentID)
	return db.Where("card_id IN (?)", cards)
}

// VisibleTo narrows rows to documents the user may read: their own plus
// anonymous uploads. Figure and knowledge rows reach their document through
// the chapters table.
type VisibleTo struct {
	UserID          *uuid.UUID
	ThroughChapters bool
}

func (s VisibleTo) Apply(db *gorm.DB) *gorm.DB {
	docs := db.Session(&gorm.Session{NewDB: true}).Table("documents").Select("id")
	if s.UserID == nil {
		docs = docs.Where("user_id IS NULL")
	} else {
		docs = docs.Where("user_id IS NULL OR user_id = ?", *s.UserID)
	}
	if !s.ThroughChapters {
		return db.Where("document_id IN (?)", docs)
	}
	chapters := db.Session(&gorm.Session{NewDB: true}).Table("chapters").Select("id").Where("document_id IN (?)", docs)
	return db.Where("chapter_id IN (?)", chapters)
}
