package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"docflash-be/internal/dto"
	"docflash-be/internal/entity"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/specification"
	"docflash-be/pkg/events"
	"docflash-be/pkg/parser"
	"docflash-be/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_TwoChapterText(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	id := env.processed(t, nil, "biology.txt", twoChapterText)

	doc := env.document(t, id)
	assert.Equal(t, entity.DocumentCompleted, doc.Status)
	assert.Nil(t, doc.ErrorMessage)
	assert.EqualValues(t, 2, doc.Metadata["chapter_count"])
	assert.Equal(t, "text/plain", doc.Metadata["content_type"])

	chapters, err := env.documents.Chapters(ctx, nil, id)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "A", chapters[0].Title)
	assert.Equal(t, "B", chapters[1].Title)
	assert.Equal(t, 0, chapters[0].OrderIndex)
	assert.Equal(t, 1, chapters[1].OrderIndex)

	points, err := env.documents.ChapterKnowledge(ctx, nil, chapters[0].Id)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Contains(t, points[0].Text, "Photosynthesis")
	assert.Equal(t, "A", points[0].Anchor.ChapterTitle)

	status, err := env.documents.Status(ctx, nil, id)
	require.NoError(t, err)
	require.NotNil(t, status.Counts)
	assert.EqualValues(t, 2, status.Counts.Chapters)
	assert.EqualValues(t, 2, status.Counts.Knowledge)
	assert.GreaterOrEqual(t, status.Counts.Cards, status.Counts.Knowledge)
	require.NotNil(t, status.Job)

	assert.Equal(t, []string{events.DocumentProcessing, events.DocumentCompleted}, env.events.types())
}

func TestPipeline_CorruptPDFFails(t *testing.T) {
	env := newTestEnv(t)
	res := env.upload(t, nil, "broken.pdf", "this is definitely not a pdf file")

	err := env.pipeline.Process(context.Background(), res.Id, res.JobId)
	require.Error(t, err)

	var parseErr *apperr.ParseError
	require.True(t, errors.As(err, &parseErr))
	var procErr *apperr.ProcessingError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, StageParse, procErr.Stage)
	assert.False(t, apperr.Retryable(err))

	doc := env.document(t, res.Id)
	assert.Equal(t, entity.DocumentFailed, doc.Status)
	require.NotNil(t, doc.ErrorMessage)
	assert.NotEmpty(t, *doc.ErrorMessage)
	assert.Contains(t, *doc.ErrorMessage, "parse")

	assert.Contains(t, env.events.types(), events.DocumentFailed)
}

func TestPipeline_ReprocessReplacesOutput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.processed(t, nil, "biology.txt", twoChapterText)
	firstCards := len(env.cards(t, id))

	require.NoError(t, env.pipeline.Process(ctx, id, ""))

	uow := env.factory.NewUnitOfWork(ctx)
	chapters, err := uow.ChapterRepository().Count(ctx, specification.ByDocumentID{DocumentID: id})
	require.NoError(t, err)
	assert.EqualValues(t, 2, chapters)
	assert.Len(t, env.cards(t, id), firstCards)
}

func TestPipeline_SkipsDocumentClaimedElsewhere(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.upload(t, nil, "biology.txt", twoChapterText)

	now := time.Now().UTC()
	ok, err := env.factory.NewUnitOfWork(ctx).DocumentRepository().ClaimForProcessing(ctx, res.Id, now, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	err = env.pipeline.Process(ctx, res.Id, res.JobId)
	var validationErr *apperr.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.True(t, validationErr.Conflict)

	doc := env.document(t, res.Id)
	assert.Equal(t, entity.DocumentProcessing, doc.Status)
	count, err := env.factory.NewUnitOfWork(ctx).ChapterRepository().Count(ctx, specification.ByDocumentID{DocumentID: res.Id})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPipeline_CancelBetweenStages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.upload(t, nil, "biology.txt", twoChapterText)

	job, err := env.queue.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	_, err = env.queue.Cancel(ctx, job.ID)
	require.NoError(t, err)

	err = env.pipeline.Process(ctx, res.Id, job.ID)
	require.True(t, errors.Is(err, apperr.ErrCancelled))

	doc := env.document(t, res.Id)
	assert.Equal(t, entity.DocumentFailed, doc.Status)
}

func TestPipeline_RunsFromWorkerPool(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good := env.upload(t, nil, "biology.txt", twoChapterText)
	bad := env.upload(t, nil, "broken.pdf", "not a pdf at all")

	pool := queue.NewPool(env.queue, env.pipeline.HandleJob, env.pipeline.OnExhausted,
		queue.PoolOptions{Concurrency: 1, PollTimeout: time.Second, Name: "test"}, logger.NewNopLogger())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		goodJob, err := env.queue.Job(context.Background(), good.JobId)
		if err != nil || goodJob.Status != queue.StatusCompleted {
			return false
		}
		badJob, err := env.queue.Job(context.Background(), bad.JobId)
		return err == nil && badJob.Status == queue.StatusFailed
	}, 15*time.Second, 50*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, entity.DocumentCompleted, env.document(t, good.Id).Status)
	assert.Equal(t, entity.DocumentFailed, env.document(t, bad.Id).Status)

	// a terminal parse failure is not retried
	badJob, err := env.queue.Job(context.Background(), bad.JobId)
	require.NoError(t, err)
	assert.Equal(t, 1, badJob.Attempts)
}

// slowParser ignores its context, like a parser stuck inside a library call.
type slowParser struct {
	delay time.Duration
}

func (p slowParser) FileType() parser.FileType { return parser.FileTypeText }

func (p slowParser) Parse(ctx context.Context, path string) (*parser.ParsedContent, error) {
	time.Sleep(p.delay)
	return &parser.ParsedContent{}, nil
}

func newSlowParseEnv(t *testing.T) *testEnv {
	t.Helper()
	opts := DefaultPipelineOptions()
	opts.ParseTimeout = 5 * time.Millisecond
	return newTestEnvWith(t, parser.NewRegistry(slowParser{delay: 300 * time.Millisecond}), opts)
}

func TestPipeline_ParseTimeout(t *testing.T) {
	env := newSlowParseEnv(t)
	res := env.upload(t, nil, "slow.txt", twoChapterText)

	err := env.pipeline.Process(context.Background(), res.Id, "")
	require.Error(t, err)

	var timeoutErr *apperr.TimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, StageParse, timeoutErr.Stage)
	assert.Equal(t, 5*time.Millisecond, timeoutErr.After)
	var parseErr *apperr.ParseError
	assert.False(t, errors.As(err, &parseErr))
	assert.True(t, apperr.Retryable(err))

	doc := env.document(t, res.Id)
	assert.Equal(t, entity.DocumentFailed, doc.Status)
	require.NotNil(t, doc.ErrorMessage)
	assert.True(t, strings.HasPrefix(*doc.ErrorMessage, "parse:"), *doc.ErrorMessage)
	assert.Contains(t, env.events.types(), events.DocumentFailed)
}

func TestPipeline_RetryKeepsDocumentPending(t *testing.T) {
	ctx := context.Background()
	env := newSlowParseEnv(t)
	res := env.upload(t, nil, "slow.txt", twoChapterText)

	job, err := env.queue.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	runErr := env.pipeline.Process(ctx, res.Id, job.ID)
	require.Error(t, runErr)
	retried, err := env.queue.Retry(ctx, job.ID, runErr)
	require.NoError(t, err)
	require.Equal(t, queue.StatusRetrying, retried.Status)

	doc := env.document(t, res.Id)
	assert.Equal(t, entity.DocumentPending, doc.Status)
	require.NotNil(t, doc.ErrorMessage)
	assert.True(t, strings.HasPrefix(*doc.ErrorMessage, "parse:"), *doc.ErrorMessage)
	assert.NotContains(t, env.events.types(), events.DocumentFailed)

	job, err = env.queue.Dequeue(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempts)
	runErr = env.pipeline.Process(ctx, res.Id, job.ID)
	require.Error(t, runErr)
	failed, err := env.queue.Retry(ctx, job.ID, runErr)
	require.NoError(t, err)
	require.Equal(t, queue.StatusFailed, failed.Status)

	doc = env.document(t, res.Id)
	assert.Equal(t, entity.DocumentFailed, doc.Status)
	assert.Contains(t, env.events.types(), events.DocumentFailed)
}

func TestPipeline_TakesOverDocumentOfDeadWorker(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.upload(t, nil, "biology.txt", twoChapterText)

	job, err := env.queue.Dequeue(ctx, "dead-worker", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	now := time.Now().UTC()
	ok, err := env.factory.NewUnitOfWork(ctx).DocumentRepository().ClaimForProcessing(ctx, res.Id, now, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	env.mr.FastForward(time.Hour)

	again, err := env.documents.Reprocess(ctx, nil, res.Id, &dto.ReprocessRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, res.JobId, again.JobId)

	next, err := env.queue.Dequeue(ctx, "live-worker", time.Second)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, again.JobId, next.ID)
	require.NoError(t, env.pipeline.Process(ctx, res.Id, next.ID))

	assert.Equal(t, entity.DocumentCompleted, env.document(t, res.Id).Status)
	old, err := env.queue.Job(ctx, res.JobId)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, old.Status)
}

// textWithImages parses text normally and places fixed images after it.
type textWithImages struct {
	images []parser.ImageData
}

func (p textWithImages) FileType() parser.FileType { return parser.FileTypeText }

func (p textWithImages) Parse(ctx context.Context, path string) (*parser.ParsedContent, error) {
	content, err := parser.NewTextParser().Parse(ctx, path)
	if err != nil {
		return nil, err
	}
	content.Images = append(content.Images, p.images...)
	return content, nil
}

func TestPipeline_RecordsWhetherFigureIsStored(t *testing.T) {
	ctx := context.Background()
	images := []parser.ImageData{
		{Name: "page1_Im0.jpg", Format: "jpg", Page: 1, Positioned: true,
			BBox: parser.BoundingBox{Y: 1000, Width: 50, Height: 50}, Data: []byte{0xff, 0xd8, 0xff, 0xe0}},
		{Name: "page1_Im1.png", Format: "png", Page: 1, Positioned: true,
			BBox: parser.BoundingBox{Y: 1100, Width: 50, Height: 50}},
	}
	env := newTestEnvWith(t, parser.NewRegistry(textWithImages{images: images}), DefaultPipelineOptions())
	id := env.processed(t, nil, "biology.txt", twoChapterText)

	chapters, err := env.documents.Chapters(ctx, nil, id)
	require.NoError(t, err)
	var figures []dto.FigureResponse
	for _, ch := range chapters {
		found, err := env.documents.ChapterFigures(ctx, nil, ch.Id)
		require.NoError(t, err)
		figures = append(figures, found...)
	}
	require.Len(t, figures, 2)

	byName := map[string]dto.FigureResponse{}
	for _, f := range figures {
		byName[f.Metadata["name"].(string)] = f
	}
	assert.Equal(t, true, byName["page1_Im0.jpg"].Metadata["stored"])
	assert.NotEmpty(t, byName["page1_Im0.jpg"].URL)
	assert.Equal(t, false, byName["page1_Im1.png"].Metadata["stored"])
	assert.Empty(t, byName["page1_Im1.png"].URL)
}

func TestImageFilename(t *testing.T) {
	cases := []struct {
		img  parser.ImageData
		want string
	}{
		{parser.ImageData{Name: "page1_Im0.jpg", Format: "jpg"}, "page1_Im0.jpg"},
		{parser.ImageData{Name: "image1.png", Format: "png"}, "image1.png"},
		{parser.ImageData{Name: "Im0", Format: "jp2"}, "Im0.jp2"},
		{parser.ImageData{Name: "Im0"}, "Im0"},
		{parser.ImageData{Format: "png"}, "image.png"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, imageFilename(c.img))
	}
}
