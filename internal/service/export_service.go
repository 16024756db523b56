package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"docflash-be/internal/dto"
	"docflash-be/internal/entity"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/pkg/storage"

	"github.com/google/uuid"
)

const (
	backupVersion    = 1
	maxBackupLineLen = 16 * 1024 * 1024

	recordHeader    = "header"
	recordDocument  = "document"
	recordChapter   = "chapter"
	recordFigure    = "figure"
	recordKnowledge = "knowledge"
	recordCard      = "card"
)

type IExportService interface {
	ExportAnki(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.ExportFile, error)
	ExportNotion(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.ExportFile, error)
	Backup(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.ExportFile, error)
	Restore(ctx context.Context, userId *uuid.UUID, r io.Reader) (*dto.ImportResult, error)
}

type exportService struct {
	uowFactory unitofwork.RepositoryFactory
	storage    storage.Storage
	logger     logger.ILogger
}

func NewExportService(uowFactory unitofwork.RepositoryFactory, store storage.Storage, logger logger.ILogger) IExportService {
	return &exportService{
		uowFactory: uowFactory,
		storage:    store,
		logger:     logger,
	}
}

// documentTree is everything a document owns, loaded in one read.
type documentTree struct {
	doc       *entity.Document
	chapters  []*entity.Chapter
	figures   []*entity.Figure
	knowledge []*entity.Knowledge
	cards     []*entity.Card
}

func (t *documentTree) chapterTitles() (byKnowledge map[uuid.UUID]string) {
	titles := make(map[uuid.UUID]string, len(t.chapters))
	for _, c := range t.chapters {
		titles[c.Id] = c.Title
	}
	byKnowledge = make(map[uuid.UUID]string, len(t.knowledge))
	for _, k := range t.knowledge {
		byKnowledge[k.Id] = titles[k.ChapterId]
	}
	return byKnowledge
}

func (s *exportService) loadTree(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*documentTree, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return nil, err
	}
	if doc == nil || !ownedBy(doc.UserId, userId) {
		return nil, apperr.NewNotFound("document")
	}

	tree := &documentTree{doc: doc}
	if tree.chapters, err = uow.ChapterRepository().FindAll(ctx,
		specification.ByDocumentID{DocumentID: doc.Id},
		specification.OrderBy{Field: "order_index"},
	); err != nil {
		return nil, err
	}
	if tree.figures, err = uow.FigureRepository().FindAll(ctx, specification.InDocument{DocumentID: doc.Id}); err != nil {
		return nil, err
	}
	if tree.knowledge, err = uow.KnowledgeRepository().FindAll(ctx, specification.InDocument{DocumentID: doc.Id}); err != nil {
		return nil, err
	}
	if tree.cards, err = uow.CardRepository().FindAll(ctx,
		specification.ByDocumentID{DocumentID: doc.Id},
		specification.OrderBy{Field: "created_at"},
	); err != nil {
		return nil, err
	}
	return tree, nil
}

func exportName(doc *entity.Document, ext string) string {
	base := strings.TrimSuffix(doc.Filename, path.Ext(doc.Filename))
	if base == "" {
		base = doc.Id.String()
	}
	return base + ext
}

// ExportAnki writes the semicolon separated front;back;tags layout Anki's
// text importer expects. Tags are space separated, so spaces inside a chapter
// title become underscores.
func (s *exportService) ExportAnki(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.ExportFile, error) {
	tree, err := s.loadTree(ctx, userId, documentId)
	if err != nil {
		return nil, err
	}
	titles := tree.chapterTitles()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	for _, c := range tree.cards {
		tags := []string{"docflash", strings.ToLower(c.CardType)}
		if title := titles[c.KnowledgeId]; title != "" {
			tags = append(tags, strings.Join(strings.Fields(title), "_"))
		}
		if err := w.Write([]string{c.Front, c.Back, strings.Join(tags, " ")}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &dto.ExportFile{
		Filename:    exportName(tree.doc, "-anki.csv"),
		ContentType: "text/csv; charset=utf-8",
		Data:        buf.Bytes(),
	}, nil
}

func (s *exportService) ExportNotion(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.ExportFile, error) {
	tree, err := s.loadTree(ctx, userId, documentId)
	if err != nil {
		return nil, err
	}
	titles := tree.chapterTitles()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Front", "Back", "Type", "Chapter", "Difficulty"}); err != nil {
		return nil, err
	}
	for _, c := range tree.cards {
		row := []string{
			c.Front,
			c.Back,
			c.CardType,
			titles[c.KnowledgeId],
			strconv.FormatFloat(c.Difficulty, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &dto.ExportFile{
		Filename:    exportName(tree.doc, "-notion.csv"),
		ContentType: "text/csv; charset=utf-8",
		Data:        buf.Bytes(),
	}, nil
}

type backupRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type backupHeader struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
}

type backupDocument struct {
	Id          uuid.UUID              `json:"id"`
	Filename    string                 `json:"filename"`
	FileType    string                 `json:"file_type"`
	StoragePath string                 `json:"storage_path"`
	FileSize    int64                  `json:"file_size"`
	Status      string                 `json:"status"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}

type backupChapter struct {
	Id         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Level      int       `json:"level"`
	OrderIndex int       `json:"order_index"`
	PageStart  *int      `json:"page_start"`
	PageEnd    *int      `json:"page_end"`
	Content    string    `json:"content"`
}

type backupFigure struct {
	Id          uuid.UUID              `json:"id"`
	ChapterId   uuid.UUID              `json:"chapter_id"`
	StoragePath string                 `json:"storage_path"`
	Caption     string                 `json:"caption"`
	PageNumber  int                    `json:"page_number"`
	BBox        entity.BoundingBox     `json:"bbox"`
	Format      string                 `json:"format"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type backupKnowledge struct {
	Id         uuid.UUID     `json:"id"`
	ChapterId  uuid.UUID     `json:"chapter_id"`
	Kind       string        `json:"kind"`
	Text       string        `json:"text"`
	Entities   []string      `json:"entities"`
	Anchor     entity.Anchor `json:"anchor"`
	Language   string        `json:"language"`
	Confidence float64       `json:"confidence"`
	Embedding  []float32     `json:"embedding,omitempty"`
}

type backupCard struct {
	Id          uuid.UUID              `json:"id"`
	KnowledgeId uuid.UUID              `json:"knowledge_id"`
	CardType    string                 `json:"card_type"`
	Front       string                 `json:"front"`
	Back        string                 `json:"back"`
	Difficulty  float64                `json:"difficulty"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Backup writes one JSON object per line: a header, the document, then its
// chapters, figures, knowledge points and cards, parents before children.
func (s *exportService) Backup(ctx context.Context, userId *uuid.UUID, documentId uuid.UUID) (*dto.ExportFile, error) {
	tree, err := s.loadTree(ctx, userId, documentId)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	write := func(kind string, v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return enc.Encode(backupRecord{Type: kind, Data: data})
	}

	if err := write(recordHeader, backupHeader{Version: backupVersion, ExportedAt: time.Now().UTC()}); err != nil {
		return nil, err
	}
	d := tree.doc
	if err := write(recordDocument, backupDocument{
		Id:          d.Id,
		Filename:    d.Filename,
		FileType:    d.FileType,
		StoragePath: d.StoragePath,
		FileSize:    d.FileSize,
		Status:      string(d.Status),
		Metadata:    d.Metadata,
		CreatedAt:   d.CreatedAt,
	}); err != nil {
		return nil, err
	}
	for _, c := range tree.chapters {
		if err := write(recordChapter, backupChapter{
			Id:         c.Id,
			Title:      c.Title,
			Level:      c.Level,
			OrderIndex: c.OrderIndex,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
			Content:    c.Content,
		}); err != nil {
			return nil, err
		}
	}
	for _, f := range tree.figures {
		if err := write(recordFigure, backupFigure{
			Id:          f.Id,
			ChapterId:   f.ChapterId,
			StoragePath: f.StoragePath,
			Caption:     f.Caption,
			PageNumber:  f.PageNumber,
			BBox:        f.BBox,
			Format:      f.Format,
			Metadata:    f.Metadata,
		}); err != nil {
			return nil, err
		}
	}
	for _, k := range tree.knowledge {
		if err := write(recordKnowledge, backupKnowledge{
			Id:         k.Id,
			ChapterId:  k.ChapterId,
			Kind:       k.Kind,
			Text:       k.Text,
			Entities:   k.Entities,
			Anchor:     k.Anchor,
			Language:   k.Language,
			Confidence: k.Confidence,
			Embedding:  k.Embedding,
		}); err != nil {
			return nil, err
		}
	}
	for _, c := range tree.cards {
		if err := write(recordCard, backupCard{
			Id:          c.Id,
			KnowledgeId: c.KnowledgeId,
			CardType:    c.CardType,
			Front:       c.Front,
			Back:        c.Back,
			Difficulty:  c.Difficulty,
			Metadata:    c.Metadata,
		}); err != nil {
			return nil, err
		}
	}

	return &dto.ExportFile{
		Filename:    exportName(d, ".jsonl"),
		ContentType: "application/x-ndjson",
		Data:        buf.Bytes(),
	}, nil
}

// Restore imports a backup as a new document. Every id is regenerated and
// references are remapped; rows pointing at something the backup does not
// contain are skipped and reported in Errors.
func (s *exportService) Restore(ctx context.Context, userId *uuid.UUID, r io.Reader) (*dto.ImportResult, error) {
	result := &dto.ImportResult{Errors: []string{}}

	var (
		doc       *entity.Document
		chapters  []*entity.Chapter
		figures   []*entity.Figure
		knowledge []*entity.Knowledge
		cards     []*entity.Card
		chapterId = map[uuid.UUID]uuid.UUID{}
		pointId   = map[uuid.UUID]uuid.UUID{}
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxBackupLineLen)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec backupRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if rec.Type != recordHeader && rec.Type != recordDocument && doc == nil {
			return nil, apperr.NewValidation("file", fmt.Sprintf("line %d: %s record before the document record", line, rec.Type))
		}

		switch rec.Type {
		case recordHeader:
			var h backupHeader
			if err := json.Unmarshal(rec.Data, &h); err != nil {
				return nil, apperr.NewValidation("file", fmt.Sprintf("line %d: bad header: %v", line, err))
			}
			if h.Version > backupVersion {
				return nil, apperr.NewValidation("file", fmt.Sprintf("backup version %d is newer than supported version %d", h.Version, backupVersion))
			}
		case recordDocument:
			if doc != nil {
				return nil, apperr.NewValidation("file", fmt.Sprintf("line %d: more than one document record", line))
			}
			var d backupDocument
			if err := json.Unmarshal(rec.Data, &d); err != nil {
				return nil, apperr.NewValidation("file", fmt.Sprintf("line %d: bad document: %v", line, err))
			}
			metadata := d.Metadata
			if metadata == nil {
				metadata = map[string]interface{}{}
			}
			metadata["restored_from"] = d.Id.String()
			doc = &entity.Document{
				Id:          uuid.New(),
				UserId:      userId,
				Filename:    d.Filename,
				FileType:    d.FileType,
				StoragePath: s.copyObject(ctx, d.StoragePath, d.Filename),
				FileSize:    d.FileSize,
				Status:      entity.DocumentCompleted,
				Metadata:    metadata,
			}
		case recordChapter:
			var c backupChapter
			if err := json.Unmarshal(rec.Data, &c); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
				continue
			}
			newId := uuid.New()
			chapterId[c.Id] = newId
			chapters = append(chapters, &entity.Chapter{
				Id:         newId,
				DocumentId: doc.Id,
				Title:      c.Title,
				Level:      c.Level,
				OrderIndex: c.OrderIndex,
				PageStart:  c.PageStart,
				PageEnd:    c.PageEnd,
				Content:    c.Content,
			})
		case recordFigure:
			var f backupFigure
			if err := json.Unmarshal(rec.Data, &f); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
				continue
			}
			parent, ok := chapterId[f.ChapterId]
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: figure references unknown chapter %s", line, f.ChapterId))
				continue
			}
			figures = append(figures, &entity.Figure{
				Id:          uuid.New(),
				ChapterId:   parent,
				StoragePath: s.copyObject(ctx, f.StoragePath, path.Base(f.StoragePath)),
				Caption:     f.Caption,
				PageNumber:  f.PageNumber,
				BBox:        f.BBox,
				Format:      f.Format,
				Metadata:    f.Metadata,
			})
		case recordKnowledge:
			var k backupKnowledge
			if err := json.Unmarshal(rec.Data, &k); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
				continue
			}
			parent, ok := chapterId[k.ChapterId]
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: knowledge references unknown chapter %s", line, k.ChapterId))
				continue
			}
			newId := uuid.New()
			pointId[k.Id] = newId
			k.Anchor.ChapterTitle = strings.TrimSpace(k.Anchor.ChapterTitle)
			knowledge = append(knowledge, &entity.Knowledge{
				Id:         newId,
				ChapterId:  parent,
				Kind:       k.Kind,
				Text:       k.Text,
				Entities:   k.Entities,
				Anchor:     k.Anchor,
				Language:   k.Language,
				Embedding:  k.Embedding,
				Confidence: k.Confidence,
			})
		case recordCard:
			var c backupCard
			if err := json.Unmarshal(rec.Data, &c); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
				continue
			}
			parent, ok := pointId[c.KnowledgeId]
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: card references unknown knowledge point %s", line, c.KnowledgeId))
				continue
			}
			cards = append(cards, &entity.Card{
				Id:          uuid.New(),
				KnowledgeId: parent,
				DocumentId:  doc.Id,
				CardType:    c.CardType,
				Front:       c.Front,
				Back:        c.Back,
				Difficulty:  c.Difficulty,
				Metadata:    remapCardMetadata(c.Metadata, pointId),
			})
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: unknown record type %q", line, rec.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperr.NewValidation("file", err.Error())
	}
	if doc == nil {
		return nil, apperr.NewValidation("file", "backup has no document record")
	}

	err := unitofwork.WithTx(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		if err := uow.DocumentRepository().Create(ctx, doc); err != nil {
			return err
		}
		if err := uow.ChapterRepository().CreateBatch(ctx, chapters); err != nil {
			return err
		}
		if err := uow.FigureRepository().CreateBatch(ctx, figures); err != nil {
			return err
		}
		if err := uow.KnowledgeRepository().CreateBatch(ctx, knowledge); err != nil {
			return err
		}
		return uow.CardRepository().CreateBatch(ctx, cards)
	})
	if err != nil {
		return nil, err
	}

	result.DocumentId = doc.Id
	result.ImportedChapters = len(chapters)
	result.ImportedFigures = len(figures)
	result.ImportedKnowledge = len(knowledge)
	result.ImportedCards = len(cards)

	s.logger.Info("EXPORT", "Backup restored", map[string]interface{}{
		"document_id": doc.Id.String(),
		"chapters":    result.ImportedChapters,
		"knowledge":   result.ImportedKnowledge,
		"cards":       result.ImportedCards,
		"errors":      len(result.Errors),
	})
	return result, nil
}

// copyObject duplicates a stored object so the restored rows never share a
// key with the original. A missing object restores as an empty key.
func (s *exportService) copyObject(ctx context.Context, key, filename string) string {
	if key == "" {
		return ""
	}
	data, err := s.storage.Retrieve(ctx, key)
	if err != nil {
		s.logger.Warn("EXPORT", "Stored object not copied", map[string]interface{}{"key": key, "error": err.Error()})
		return ""
	}
	newKey, err := s.storage.Save(ctx, data, filename, "")
	if err != nil {
		s.logger.Warn("EXPORT", "Stored object not copied", map[string]interface{}{"key": key, "error": err.Error()})
		return ""
	}
	return newKey
}

func remapCardMetadata(metadata map[string]interface{}, pointId map[uuid.UUID]uuid.UUID) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	if raw, ok := out["knowledge_id"].(string); ok {
		if old, err := uuid.Parse(raw); err == nil {
			if mapped, ok := pointId[old]; ok {
				out["knowledge_id"] = mapped.String()
			}
		}
	}
	// the figure id and image path point at the original document
	delete(out, "figure_id")
	return out
}
