package service

import (
	"context"
	"testing"

	"docflash-be/internal/dto"
	"docflash-be/internal/entity"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/internal/testutil"
	"docflash-be/pkg/embedding"
	"docflash-be/pkg/parser"
	"docflash-be/pkg/queue"
	"docflash-be/pkg/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const twoChapterText = `Chapter 1: A
Photosynthesis is defined as the process by which plants convert light into chemical energy.

Chapter 2: B
The mitochondria is the powerhouse of the cell and it produces ATP for the whole organism.
`

type testEnv struct {
	db        *gorm.DB
	factory   unitofwork.RepositoryFactory
	store     *storage.LocalStorage
	queue     *queue.RedisQueue
	mr        *miniredis.Miniredis
	events    *recordingRelay
	documents IDocumentService
	pipeline  IPipelineService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, parser.NewDefaultRegistry(), DefaultPipelineOptions())
}

func newTestEnvWith(t *testing.T, parsers *parser.Registry, opts PipelineOptions) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	store, err := storage.NewLocalStorage(t.TempDir(), "http://files.test")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	q := queue.NewRedisQueue(rdb, queue.RedisOptions{KeyPrefix: "test", RetryAttempts: 1})

	factory := unitofwork.NewRepositoryFactory(db)
	relay := &recordingRelay{}
	log := logger.NewNopLogger()

	return &testEnv{
		db:        db,
		factory:   factory,
		store:     store,
		queue:     q,
		mr:        mr,
		events:    relay,
		documents: NewDocumentService(factory, store, q, relay, 1, log),
		pipeline: NewPipelineService(factory, store, q, relay, embedding.NewHashProvider(64),
			parsers, opts, log),
	}
}

func (e *testEnv) upload(t *testing.T, userId *uuid.UUID, filename, content string) *dto.UploadDocumentResponse {
	t.Helper()
	res, err := e.documents.Upload(context.Background(), userId, &dto.UploadDocumentRequest{
		Filename:    filename,
		ContentType: "text/plain",
		Data:        []byte(content),
	})
	require.NoError(t, err)
	return res
}

// processed uploads content and runs the pipeline over it synchronously.
func (e *testEnv) processed(t *testing.T, userId *uuid.UUID, filename, content string) uuid.UUID {
	t.Helper()
	res := e.upload(t, userId, filename, content)
	require.NoError(t, e.pipeline.Process(context.Background(), res.Id, res.JobId))
	return res.Id
}

func (e *testEnv) document(t *testing.T, id uuid.UUID) *entity.Document {
	t.Helper()
	doc, err := e.factory.NewUnitOfWork(context.Background()).DocumentRepository().FindOne(context.Background(), specification.ByID{ID: id})
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

func (e *testEnv) cards(t *testing.T, documentId uuid.UUID) []*entity.Card {
	t.Helper()
	cards, err := e.factory.NewUnitOfWork(context.Background()).CardRepository().FindAll(context.Background(), specification.ByDocumentID{DocumentID: documentId})
	require.NoError(t, err)
	return cards
}

func (r *recordingRelay) types() []string {
	var out []string
	for _, e := range r.snapshot() {
		out = append(out, e.EventType())
	}
	return out
}
