package implementation_test

import (
	"context"
	"testing"
	"time"

	"docflash-be/internal/entity"
	"docflash-be/internal/repository/implementation"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedDocument(t *testing.T, db *gorm.DB) *entity.Document {
	t.Helper()
	doc := &entity.Document{
		Filename:    "notes.md",
		FileType:    "markdown",
		StoragePath: "2026/10/x.md",
		FileSize:    42,
		Metadata:    map[string]interface{}{"source": "test"},
	}
	require.NoError(t, implementation.NewDocumentRepository(db).Create(context.Background(), doc))
	return doc
}

func TestDocumentRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := implementation.NewDocumentRepository(db)

	doc := seedDocument(t, db)
	assert.NotEqual(t, uuid.Nil, doc.Id)
	assert.Equal(t, entity.DocumentPending, doc.Status)

	found, err := repo.FindOne(ctx, specification.ByID{ID: doc.Id})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "notes.md", found.Filename)
	assert.Equal(t, "test", found.Metadata["source"])

	missing, err := repo.FindOne(ctx, specification.ByID{ID: uuid.New()})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocumentRepository_ClaimForProcessing(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := implementation.NewDocumentRepository(db)
	doc := seedDocument(t, db)

	now := time.Now().UTC()
	ok, err := repo.ClaimForProcessing(ctx, doc.Id, now, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// a second claim while the first is fresh loses
	ok, err = repo.ClaimForProcessing(ctx, doc.Id, now.Add(time.Second), now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	// once the first run is stale it can be taken over
	later := now.Add(time.Hour)
	ok, err = repo.ClaimForProcessing(ctx, doc.Id, later, later.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.MarkFailed(ctx, doc.Id, "parse: broken"))
	found, err := repo.FindOne(ctx, specification.ByID{ID: doc.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentFailed, found.Status)
	require.NotNil(t, found.ErrorMessage)
	assert.Equal(t, "parse: broken", *found.ErrorMessage)

	require.NoError(t, repo.MarkRetrying(ctx, doc.Id, "parse: timed out"))
	found, err = repo.FindOne(ctx, specification.ByID{ID: doc.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentPending, found.Status)
	require.NotNil(t, found.ErrorMessage)
	assert.Equal(t, "parse: timed out", *found.ErrorMessage)

	// the retry can claim straight away
	ok, err = repo.ClaimForProcessing(ctx, doc.Id, later.Add(time.Second), later.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.MarkCompleted(ctx, doc.Id, map[string]interface{}{"chapters": 2}))
	found, err = repo.FindOne(ctx, specification.ByID{ID: doc.Id})
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentCompleted, found.Status)
	assert.Nil(t, found.ErrorMessage)
	assert.EqualValues(t, 2, found.Metadata["chapters"])
}

func TestChapterRepository_OrderIndexUnique(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	doc := seedDocument(t, db)
	repo := implementation.NewChapterRepository(db)

	require.NoError(t, repo.CreateBatch(ctx, []*entity.Chapter{
		{DocumentId: doc.Id, Title: "A", Level: 1, OrderIndex: 0},
		{DocumentId: doc.Id, Title: "B", Level: 1, OrderIndex: 1},
	}))

	err := repo.CreateBatch(ctx, []*entity.Chapter{{DocumentId: doc.Id, Title: "dup", Level: 1, OrderIndex: 1}})
	assert.Error(t, err)

	chapters, err := repo.FindAll(ctx, specification.ByDocumentID{DocumentID: doc.Id}, specification.OrderBy{Field: "order_index"})
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "A", chapters[0].Title)
	assert.Equal(t, "B", chapters[1].Title)
}

func TestKnowledgeRepository_RoundTripAndSearch(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	doc := seedDocument(t, db)

	chapters := []*entity.Chapter{{DocumentId: doc.Id, Title: "Intro", Level: 1, OrderIndex: 0}}
	require.NoError(t, implementation.NewChapterRepository(db).CreateBatch(ctx, chapters))

	repo := implementation.NewKnowledgeRepository(db)
	points := []*entity.Knowledge{
		{
			ChapterId:  chapters[0].Id,
			Kind:       "DEFINITION",
			Text:       "Osmosis is defined as diffusion of water across a membrane.",
			Entities:   []string{"Osmosis"},
			Anchor:     entity.Anchor{Page: 3, Position: 1, BBox: entity.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}},
			Confidence: 0.8,
		},
		{ChapterId: chapters[0].Id, Kind: "FACT", Text: "Cells have 100% water_content.", Confidence: 0.5},
	}
	require.NoError(t, repo.CreateBatch(ctx, points))

	found, err := repo.FindOne(ctx, specification.ByID{ID: points[0].Id})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, []string{"Osmosis"}, found.Entities)
	assert.Equal(t, 3, found.Anchor.Page)
	assert.Equal(t, 4.0, found.Anchor.BBox.Height)
	assert.Empty(t, found.Embedding)

	hits, err := repo.FindAll(ctx, specification.TextContains{Columns: []string{"text"}, Query: "OSMOSIS"})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// LIKE wildcards in the query are literal
	hits, err = repo.FindAll(ctx, specification.TextContains{Columns: []string{"text"}, Query: "100%"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	hits, err = repo.FindAll(ctx, specification.TextContains{Columns: []string{"text"}, Query: "r_c"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	n, err := repo.Count(ctx, specification.InDocument{DocumentID: doc.Id})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestSRSRecordRepository_UpdateVersioned(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := implementation.NewSRSRecordRepository(db)

	rec := &entity.SRSRecord{CardId: uuid.New(), EaseFactor: 2.5, IntervalDays: 1}
	require.NoError(t, repo.Create(ctx, rec))

	stale := *rec
	grade := 4
	rec.Repetitions = 1
	rec.LastGrade = &grade

	ok, err := repo.UpdateVersioned(ctx, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, rec.Version)

	stale.Repetitions = 9
	ok, err = repo.UpdateVersioned(ctx, &stale)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindOne(ctx, specification.ByCardID{CardID: rec.CardId}, specification.ByOwner{})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 1, found.Repetitions)
	require.NotNil(t, found.LastGrade)
	assert.Equal(t, 4, *found.LastGrade)
}

func TestDueAt(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	repo := implementation.NewSRSRecordRepository(db)

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	exact := now

	for _, due := range []*time.Time{nil, &past, &exact, &future} {
		require.NoError(t, repo.Create(ctx, &entity.SRSRecord{CardId: uuid.New(), EaseFactor: 2.5, IntervalDays: 1, DueDate: due}))
	}

	due, err := repo.Count(ctx, specification.DueAt{At: now})
	require.NoError(t, err)
	assert.EqualValues(t, 3, due)

	overdue, err := repo.Count(ctx, specification.DueAt{At: now, Overdue: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, overdue)
}

func TestDeleteByDocumentId_Cascade(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	doc := seedDocument(t, db)
	other := seedDocument(t, db)

	seed := func(d *entity.Document) {
		chapters := []*entity.Chapter{{DocumentId: d.Id, Title: "C", Level: 1, OrderIndex: 0}}
		require.NoError(t, implementation.NewChapterRepository(db).CreateBatch(ctx, chapters))
		require.NoError(t, implementation.NewFigureRepository(db).CreateBatch(ctx, []*entity.Figure{{ChapterId: chapters[0].Id, PageNumber: 1}}))
		points := []*entity.Knowledge{{ChapterId: chapters[0].Id, Kind: "FACT", Text: "x"}}
		require.NoError(t, implementation.NewKnowledgeRepository(db).CreateBatch(ctx, points))
		cards := []*entity.Card{{KnowledgeId: points[0].Id, DocumentId: d.Id, CardType: "QA", Front: "f", Back: "b", Difficulty: 1}}
		require.NoError(t, implementation.NewCardRepository(db).CreateBatch(ctx, cards))
		require.NoError(t, implementation.NewSRSRecordRepository(db).Create(ctx, &entity.SRSRecord{CardId: cards[0].Id, EaseFactor: 2.5, IntervalDays: 1}))
	}
	seed(doc)
	seed(other)

	require.NoError(t, implementation.NewSRSRecordRepository(db).DeleteByDocumentId(ctx, doc.Id))
	require.NoError(t, implementation.NewCardRepository(db).DeleteByDocumentId(ctx, doc.Id))
	require.NoError(t, implementation.NewKnowledgeRepository(db).DeleteByDocumentId(ctx, doc.Id))
	require.NoError(t, implementation.NewFigureRepository(db).DeleteByDocumentId(ctx, doc.Id))
	require.NoError(t, implementation.NewChapterRepository(db).DeleteByDocumentId(ctx, doc.Id))

	srs, err := implementation.NewSRSRecordRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, srs)
	cards, err := implementation.NewCardRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cards)
	points, err := implementation.NewKnowledgeRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, points)
	figures, err := implementation.NewFigureRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, figures)
}
