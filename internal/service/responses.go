package service

import (
	"time"

	"docflash-be/internal/dto"
	"docflash-be/internal/entity"
	"docflash-be/pkg/queue"
	"docflash-be/pkg/srs"
)

func toDocumentResponse(d *entity.Document, counts *entity.DocumentCounts) dto.DocumentResponse {
	res := dto.DocumentResponse{
		Id:                  d.Id,
		Filename:            d.Filename,
		FileType:            d.FileType,
		FileSize:            d.FileSize,
		Status:              string(d.Status),
		ErrorMessage:        d.ErrorMessage,
		Metadata:            d.Metadata,
		ProcessingStartedAt: d.ProcessingStartedAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	if counts != nil {
		res.Counts = toCountsResponse(counts)
	}
	return res
}

func toCountsResponse(c *entity.DocumentCounts) *dto.DocumentCountsResponse {
	return &dto.DocumentCountsResponse{
		Chapters:  c.Chapters,
		Figures:   c.Figures,
		Knowledge: c.Knowledge,
		Cards:     c.Cards,
	}
}

func toChapterResponse(c *entity.Chapter, withContent bool) dto.ChapterResponse {
	res := dto.ChapterResponse{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		Title:      c.Title,
		Level:      c.Level,
		OrderIndex: c.OrderIndex,
		PageStart:  c.PageStart,
		PageEnd:    c.PageEnd,
	}
	if withContent {
		res.Content = c.Content
	}
	return res
}

func toBBox(b entity.BoundingBox) dto.BoundingBox {
	return dto.BoundingBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func toFigureResponse(f *entity.Figure, url string) dto.FigureResponse {
	return dto.FigureResponse{
		Id:         f.Id,
		ChapterId:  f.ChapterId,
		Caption:    f.Caption,
		PageNumber: f.PageNumber,
		BBox:       toBBox(f.BBox),
		Format:     f.Format,
		URL:        url,
		Metadata:   f.Metadata,
	}
}

func toKnowledgeResponse(k *entity.Knowledge) dto.KnowledgeResponse {
	entities := k.Entities
	if entities == nil {
		entities = []string{}
	}
	return dto.KnowledgeResponse{
		Id:        k.Id,
		ChapterId: k.ChapterId,
		Kind:      k.Kind,
		Text:      k.Text,
		Entities:  entities,
		Anchor: dto.AnchorResponse{
			Page:         k.Anchor.Page,
			Position:     k.Anchor.Position,
			BBox:         toBBox(k.Anchor.BBox),
			ChapterTitle: k.Anchor.ChapterTitle,
		},
		Language:   k.Language,
		Confidence: k.Confidence,
	}
}

func toCardResponse(c *entity.Card) dto.CardResponse {
	return dto.CardResponse{
		Id:          c.Id,
		KnowledgeId: c.KnowledgeId,
		DocumentId:  c.DocumentId,
		CardType:    c.CardType,
		Front:       c.Front,
		Back:        c.Back,
		Difficulty:  c.Difficulty,
		Metadata:    c.Metadata,
	}
}

func toJobResponse(j *queue.Job) *dto.JobResponse {
	if j == nil {
		return nil
	}
	return &dto.JobResponse{
		Id:              j.ID,
		DocumentId:      j.DocumentID,
		Priority:        j.Priority,
		Status:          string(j.Status),
		Attempts:        j.Attempts,
		MaxAttempts:     j.MaxAttempts,
		LastError:       j.LastError,
		Errors:          j.Errors,
		CancelRequested: j.CancelRequested,
		Supersedes:      j.Supersedes,
		EnqueuedAt:      j.EnqueuedAt,
		StartedAt:       j.StartedAt,
		FinishedAt:      j.FinishedAt,
	}
}

func toSRSStateResponse(r *entity.SRSRecord, now time.Time) dto.SRSStateResponse {
	state := recordState(r)
	return dto.SRSStateResponse{
		CardId:       r.CardId,
		EaseFactor:   r.EaseFactor,
		IntervalDays: r.IntervalDays,
		Repetitions:  r.Repetitions,
		DueDate:      r.DueDate,
		LastReviewed: r.LastReviewed,
		LastGrade:    r.LastGrade,
		Due:          srs.IsDue(state, now),
		Overdue:      srs.IsOverdue(state, now),
	}
}
