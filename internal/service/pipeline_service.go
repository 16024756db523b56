package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"docflash-be/internal/config"
	"docflash-be/internal/entity"
	"docflash-be/internal/pkg/apperr"
	"docflash-be/internal/pkg/logger"
	"docflash-be/internal/repository/specification"
	"docflash-be/internal/repository/unitofwork"
	"docflash-be/pkg/cards"
	"docflash-be/pkg/chapter"
	"docflash-be/pkg/embedding"
	"docflash-be/pkg/events"
	"docflash-be/pkg/figure"
	"docflash-be/pkg/knowledge"
	"docflash-be/pkg/parser"
	"docflash-be/pkg/queue"
	"docflash-be/pkg/storage"

	"github.com/google/uuid"
)

const (
	StageLoad             = "load"
	StageParse            = "parse"
	StageExtractChapters  = "extract_chapters"
	StagePersistChapters  = "persist_chapters"
	StageExtractKnowledge = "extract_knowledge"
	StagePairFigures      = "pair_figures"
	StagePersistKnowledge = "persist_knowledge"
	StageGenerateCards    = "generate_cards"
	StagePersistCards     = "persist_cards"
	StageComplete         = "complete"
)

type PipelineOptions struct {
	ParseTimeout time.Duration
	// StaleAfter is how long a PROCESSING claim is honoured before another
	// run may take the document over.
	StaleAfter time.Duration
	Chapter    chapter.Options
	Segment    knowledge.SegmentOptions
	Knowledge  knowledge.Options
	Figure     figure.Options
}

func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		ParseTimeout: 2 * time.Minute,
		StaleAfter:   30 * time.Minute,
		Chapter:      chapter.DefaultOptions(),
		Segment:      knowledge.DefaultSegmentOptions(),
		Knowledge:    knowledge.DefaultOptions(),
		Figure:       figure.DefaultOptions(),
	}
}

func PipelineOptionsFromConfig(cfg *config.Config) PipelineOptions {
	opts := DefaultPipelineOptions()
	opts.ParseTimeout = cfg.Pipeline.ParseTimeout
	opts.StaleAfter = cfg.Queue.StaleAfter
	opts.Chapter.Threshold = cfg.Pipeline.ChapterThreshold
	opts.Segment.MaxLength = cfg.Pipeline.MaxSegmentLength
	opts.Knowledge.MinSegmentLength = cfg.Pipeline.MinSegmentLength
	opts.Knowledge.MaxEntities = cfg.Pipeline.MaxEntitiesPerSegment
	opts.Knowledge.Entity.SimilarityThreshold = cfg.Pipeline.EntitySimilarity
	opts.Figure.MaxDistance = cfg.Pipeline.CaptionMaxDistance
	return opts
}

type IPipelineService interface {
	// Process runs every stage for one document. jobId may be empty when the
	// run is not driven by the queue.
	Process(ctx context.Context, documentId uuid.UUID, jobId string) error
	HandleJob(ctx context.Context, job *queue.Job) error
	OnExhausted(ctx context.Context, job *queue.Job, cause error)
}

type pipelineService struct {
	uowFactory unitofwork.RepositoryFactory
	storage    storage.Storage
	queue      queue.TaskQueue
	publisher  IPublisherService
	embedder   embedding.EmbeddingProvider
	parsers    *parser.Registry
	chapters   *chapter.Extractor
	extractor  *knowledge.Extractor
	pairer     *figure.Pairer
	generator  *cards.Generator
	opts       PipelineOptions
	logger     logger.ILogger
	now        func() time.Time
}

func NewPipelineService(
	uowFactory unitofwork.RepositoryFactory,
	store storage.Storage,
	taskQueue queue.TaskQueue,
	publisher IPublisherService,
	embedder embedding.EmbeddingProvider,
	parsers *parser.Registry,
	opts PipelineOptions,
	logger logger.ILogger,
) IPipelineService {
	return &pipelineService{
		uowFactory: uowFactory,
		storage:    store,
		queue:      taskQueue,
		publisher:  publisher,
		embedder:   embedder,
		parsers:    parsers,
		chapters:   chapter.NewExtractor(opts.Chapter),
		extractor:  knowledge.NewExtractor(opts.Knowledge),
		pairer:     figure.NewPairer(opts.Figure),
		generator:  cards.NewGenerator(),
		opts:       opts,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// pipelineRun carries one document through the stages.
type pipelineRun struct {
	doc      *entity.Document
	jobId    string
	job      *queue.Job
	stage    string
	content  *parser.ParsedContent
	chapters []chapter.Chapter
	saved    []*entity.Chapter
	points   []cards.KnowledgeInput
	figures  []cards.FigureInput
	pairs    []figure.Pair
	counts   entity.DocumentCounts
	embedded int
}

func (r *pipelineRun) details() map[string]interface{} {
	d := map[string]interface{}{
		"document_id": r.doc.Id.String(),
		"stage":       r.stage,
	}
	if r.jobId != "" {
		d["job_id"] = r.jobId
	}
	return d
}

func (s *pipelineService) HandleJob(ctx context.Context, job *queue.Job) error {
	return s.Process(ctx, job.DocumentID, job.ID)
}

// OnExhausted runs once the queue gives up on a job. The last attempt usually
// records the failure itself; this covers jobs that died before the pipeline
// could record anything, such as a panic, and documents left PENDING by an
// attempt that expected a retry.
func (s *pipelineService) OnExhausted(ctx context.Context, job *queue.Job, cause error) {
	if cause == nil {
		return
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: job.DocumentID})
	if err != nil || doc == nil || doc.Status == entity.DocumentFailed || doc.Status == entity.DocumentCompleted {
		return
	}
	var procErr *apperr.ProcessingError
	if doc.Status == entity.DocumentProcessing && errors.As(cause, &procErr) {
		// held by another run
		return
	}

	message := cause.Error()
	if err := uow.DocumentRepository().MarkFailed(ctx, doc.Id, message); err != nil {
		s.logger.Error("PIPELINE", "Failed to mark exhausted document", map[string]interface{}{
			"document_id": doc.Id.String(),
			"job_id":      job.ID,
			"error":       err.Error(),
		})
		return
	}
	s.publish(ctx, events.NewDocumentFailed(doc.Id, job.ID, "queue", message))
}

func (s *pipelineService) Process(ctx context.Context, documentId uuid.UUID, jobId string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	doc, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return &apperr.ProcessingError{Stage: StageLoad, Err: err}
	}
	if doc == nil {
		return &apperr.ProcessingError{Stage: StageLoad, Err: apperr.NewNotFound("document")}
	}

	run := &pipelineRun{doc: doc, jobId: jobId}
	if jobId != "" && s.queue != nil {
		if job, err := s.queue.Job(ctx, jobId); err == nil {
			run.job = job
		}
	}

	now := s.now()
	staleBefore := now.Add(-s.opts.StaleAfter)
	if run.job != nil && run.job.Supersedes != "" {
		// the queue already gave up on the previous run
		staleBefore = now
	}
	claimed, err := uow.DocumentRepository().ClaimForProcessing(ctx, doc.Id, now, staleBefore)
	if err != nil {
		return &apperr.ProcessingError{Stage: StageLoad, Err: err}
	}
	if !claimed {
		return &apperr.ProcessingError{Stage: StageLoad, Err: apperr.NewConflict("status", "document is already being processed")}
	}

	attempt := 1
	if run.job != nil && run.job.Attempts > 0 {
		attempt = run.job.Attempts
	}
	s.publish(ctx, events.NewDocumentProcessing(doc.Id, jobId, attempt))

	started := time.Now()
	steps := []struct {
		stage string
		fn    func(context.Context, *pipelineRun) error
	}{
		{StageParse, s.parse},
		{StageExtractChapters, s.extractChapters},
		{StagePersistChapters, s.persistChapters},
		{StageExtractKnowledge, s.processChapters},
		{StageGenerateCards, s.generateAndPersistCards},
		{StageComplete, s.complete},
	}

	for _, step := range steps {
		run.stage = step.stage
		if err := s.checkCancelled(ctx, run); err != nil {
			return s.fail(ctx, run, err)
		}
		s.logger.Debug("PIPELINE", "Stage started", run.details())
		if err := runStep(ctx, run, step.fn); err != nil {
			return s.fail(ctx, run, err)
		}
	}

	details := run.details()
	details["chapters"] = run.counts.Chapters
	details["knowledge"] = run.counts.Knowledge
	details["figures"] = run.counts.Figures
	details["cards"] = run.counts.Cards
	details["duration_ms"] = time.Since(started).Milliseconds()
	s.logger.Info("PIPELINE", "Document processed", details)
	return nil
}

// runStep turns a panicking stage into an ordinary failure so the document
// is not left PROCESSING.
func runStep(ctx context.Context, run *pipelineRun, fn func(context.Context, *pipelineRun) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, run)
}

func (s *pipelineService) checkCancelled(ctx context.Context, run *pipelineRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.jobId == "" || s.queue == nil {
		return nil
	}
	requested, err := s.queue.CancelRequested(ctx, run.jobId)
	if err != nil {
		// Losing the broker mid-run should not abort work that is otherwise fine.
		s.logger.Warn("PIPELINE", "Cancel check failed", withError(run.details(), err))
		return nil
	}
	if requested {
		return apperr.ErrCancelled
	}
	return nil
}

// fail records the failed stage on the document. The document only turns
// FAILED on the last attempt; while the queue still has a retry for it, it
// goes back to PENDING with the error kept. Output persisted by earlier
// stages is kept.
func (s *pipelineService) fail(ctx context.Context, run *pipelineRun, cause error) error {
	procErr := &apperr.ProcessingError{Stage: run.stage, Err: cause}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	uow := s.uowFactory.NewUnitOfWork(recordCtx)
	if willRetry(run, procErr) {
		if err := uow.DocumentRepository().MarkRetrying(recordCtx, run.doc.Id, procErr.Error()); err != nil {
			s.logger.Error("PIPELINE", "Failed to record failure", withError(run.details(), err))
		}
		details := withError(run.details(), cause)
		details["attempt"] = run.job.Attempts
		details["max_attempts"] = run.job.MaxAttempts
		s.logger.Warn("PIPELINE", "Stage failed, retry pending", details)
		return procErr
	}

	if err := uow.DocumentRepository().MarkFailed(recordCtx, run.doc.Id, procErr.Error()); err != nil {
		s.logger.Error("PIPELINE", "Failed to record failure", withError(run.details(), err))
	}

	s.logger.Error("PIPELINE", "Stage failed", withError(run.details(), cause))
	s.publish(recordCtx, events.NewDocumentFailed(run.doc.Id, run.jobId, run.stage, procErr.Error()))
	return procErr
}

// willRetry mirrors the decision the queue makes in Retry for a job taken by
// a worker.
func willRetry(run *pipelineRun, err error) bool {
	job := run.job
	if job == nil || job.Status != queue.StatusRunning || job.CancelRequested {
		return false
	}
	return apperr.Retryable(err) && !job.Exhausted()
}

func (s *pipelineService) parse(ctx context.Context, run *pipelineRun) error {
	path, release, err := s.storage.LocalPath(ctx, run.doc.StoragePath)
	if err != nil {
		return err
	}
	defer release()

	content, err := s.parseWithTimeout(ctx, path, parser.FileType(run.doc.FileType))
	if err != nil {
		return err
	}
	run.content = content
	return nil
}

// parseWithTimeout bounds the parser. Parsers do not all honour ctx, so the
// call runs in its own goroutine and is abandoned on timeout.
func (s *pipelineService) parseWithTimeout(ctx context.Context, path string, fileType parser.FileType) (*parser.ParsedContent, error) {
	timeout := s.opts.ParseTimeout
	if timeout <= 0 {
		timeout = DefaultPipelineOptions().ParseTimeout
	}
	parseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		content *parser.ParsedContent
		err     error
	}
	done := make(chan result, 1)
	go func() {
		content, err := s.parsers.Parse(parseCtx, path, fileType)
		done <- result{content: content, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &apperr.TimeoutError{Stage: StageParse, After: timeout}
		}
		return r.content, r.err
	case <-parseCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &apperr.TimeoutError{Stage: StageParse, After: timeout}
	}
}

func (s *pipelineService) extractChapters(ctx context.Context, run *pipelineRun) error {
	chapters := s.chapters.Extract(run.content)
	if len(chapters) == 0 {
		return errors.New("no chapters extracted")
	}
	if err := chapter.ValidateOrder(chapters); err != nil {
		return err
	}
	run.chapters = chapters
	return nil
}

// persistChapters replaces whatever an earlier attempt left behind with the
// freshly extracted chapters, in one transaction.
func (s *pipelineService) persistChapters(ctx context.Context, run *pipelineRun) error {
	saved := make([]*entity.Chapter, 0, len(run.chapters))
	for _, ch := range run.chapters {
		saved = append(saved, &entity.Chapter{
			Id:         uuid.New(),
			DocumentId: run.doc.Id,
			Title:      ch.Title,
			Level:      ch.Level,
			OrderIndex: ch.OrderIndex,
			PageStart:  ch.PageStart,
			PageEnd:    ch.PageEnd,
			Content:    ch.Text(),
		})
	}

	var staleKeys []string
	err := unitofwork.WithTx(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		keys, err := deleteDocumentTree(ctx, uow, run.doc.Id)
		if err != nil {
			return err
		}
		staleKeys = keys
		return uow.ChapterRepository().CreateBatch(ctx, saved)
	})
	if err != nil {
		return err
	}

	for _, key := range staleKeys {
		if _, err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("PIPELINE", "Failed to delete stale figure", withError(run.details(), err))
		}
	}

	run.saved = saved
	run.counts.Chapters = int64(len(saved))
	return nil
}

// processChapters handles chapters one at a time so that a failure leaves the
// chapters before it fully persisted.
func (s *pipelineService) processChapters(ctx context.Context, run *pipelineRun) error {
	for i, ch := range run.chapters {
		if i > 0 {
			run.stage = StageExtractKnowledge
			if err := s.checkCancelled(ctx, run); err != nil {
				return err
			}
		}
		if err := s.processChapter(ctx, run, ch, run.saved[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *pipelineService) processChapter(ctx context.Context, run *pipelineRun, ch chapter.Chapter, saved *entity.Chapter) error {
	run.stage = StageExtractKnowledge
	segments := knowledge.BuildSegments(ch.Blocks, s.opts.Segment)
	extracted := s.extractor.ExtractFromSegments(segments, saved.Id, saved.Title)

	points := make([]*entity.Knowledge, 0, len(extracted))
	for _, p := range extracted {
		point := &entity.Knowledge{
			Id:        uuid.New(),
			ChapterId: saved.Id,
			Kind:      string(p.Type),
			Text:      p.Text,
			Entities:  p.Entities,
			Anchor: entity.Anchor{
				Page:         p.Anchor.Page,
				Position:     p.Anchor.Position,
				BBox:         fromParserBBox(p.Anchor.BBox),
				ChapterTitle: p.Anchor.ChapterTitle,
			},
			Language:   p.Language,
			Confidence: p.Confidence,
		}
		point.Embedding = s.embed(ctx, run, p.Text)
		points = append(points, point)
	}

	run.stage = StagePairFigures
	pairs := s.pairer.Pair(ch.Images, ch.Blocks)
	figures := make([]*entity.Figure, 0, len(pairs))
	var savedKeys []string
	for _, pr := range pairs {
		fig := &entity.Figure{
			Id:         uuid.New(),
			ChapterId:  saved.Id,
			Caption:    pr.Caption,
			PageNumber: pr.Image.Page,
			BBox:       fromParserBBox(pr.Image.BBox),
			Format:     pr.Image.Format,
			Metadata: map[string]interface{}{
				"name":               pr.Image.Name,
				"caption_source":     pr.Source,
				"caption_confidence": pr.Confidence,
				"positioned":         pr.Image.Positioned,
			},
		}
		if pr.Image.AltText != "" {
			fig.Metadata["alt_text"] = pr.Image.AltText
		}
		if pr.Image.Source != "" {
			fig.Metadata["source"] = pr.Image.Source
		}
		if len(pr.Image.Data) > 0 {
			key, err := s.storage.Save(ctx, pr.Image.Data, imageFilename(pr.Image), "image/"+pr.Image.Format)
			if err != nil {
				s.dropKeys(ctx, run, savedKeys)
				return err
			}
			fig.StoragePath = key
			savedKeys = append(savedKeys, key)
		}
		// formats the parser cannot decode keep their caption but no file
		fig.Metadata["stored"] = fig.StoragePath != ""
		figures = append(figures, fig)
	}

	run.stage = StagePersistKnowledge
	err := unitofwork.WithTx(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		if err := uow.FigureRepository().CreateBatch(ctx, figures); err != nil {
			return err
		}
		return uow.KnowledgeRepository().CreateBatch(ctx, points)
	})
	if err != nil {
		s.dropKeys(ctx, run, savedKeys)
		return err
	}

	for _, p := range points {
		run.points = append(run.points, cards.KnowledgeInput{
			ID:        p.Id,
			ChapterID: p.ChapterId,
			Type:      knowledge.Type(p.Kind),
			Text:      p.Text,
			Entities:  p.Entities,
		})
	}
	for _, f := range figures {
		run.figures = append(run.figures, cards.FigureInput{
			ID:          f.Id,
			ChapterID:   f.ChapterId,
			Caption:     f.Caption,
			StoragePath: f.StoragePath,
			BBox:        toParserBBox(f.BBox),
		})
	}
	run.pairs = append(run.pairs, pairs...)
	run.counts.Knowledge += int64(len(points))
	run.counts.Figures += int64(len(figures))
	return nil
}

// embed is best effort; search falls back to keywords for points without a vector.
func (s *pipelineService) embed(ctx context.Context, run *pipelineRun, text string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Generate(ctx, text)
	if err != nil {
		s.logger.Warn("PIPELINE", "Embedding failed", withError(run.details(), err))
		return nil
	}
	run.embedded++
	return vec
}

func (s *pipelineService) dropKeys(ctx context.Context, run *pipelineRun, keys []string) {
	for _, key := range keys {
		if _, err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("PIPELINE", "Failed to delete orphaned figure", withError(run.details(), err))
		}
	}
}

func (s *pipelineService) generateAndPersistCards(ctx context.Context, run *pipelineRun) error {
	generated := s.generator.Generate(run.points, run.figures)
	batch := make([]*entity.Card, 0, len(generated))
	for _, c := range generated {
		batch = append(batch, &entity.Card{
			Id:          uuid.New(),
			KnowledgeId: c.KnowledgeID,
			DocumentId:  run.doc.Id,
			CardType:    string(c.Type),
			Front:       c.Front,
			Back:        c.Back,
			Difficulty:  c.Difficulty,
			Metadata:    c.Metadata,
		})
	}

	run.stage = StagePersistCards
	err := unitofwork.WithTx(ctx, s.uowFactory, func(uow unitofwork.UnitOfWork) error {
		return uow.CardRepository().CreateBatch(ctx, batch)
	})
	if err != nil {
		return err
	}
	run.counts.Cards = int64(len(batch))
	return nil
}

func (s *pipelineService) complete(ctx context.Context, run *pipelineRun) error {
	metadata := make(map[string]interface{}, len(run.doc.Metadata)+8)
	for k, v := range run.doc.Metadata {
		metadata[k] = v
	}
	for k, v := range run.content.Metadata {
		metadata[k] = v
	}
	validation := figure.Validate(run.pairs)
	metadata["chapter_count"] = run.counts.Chapters
	metadata["knowledge_count"] = run.counts.Knowledge
	metadata["figure_count"] = run.counts.Figures
	metadata["card_count"] = run.counts.Cards
	metadata["embedded_count"] = run.embedded
	metadata["caption_coverage"] = validation.Coverage
	metadata["caption_sources"] = validation.BySource
	metadata["processed_at"] = s.now().Format(time.RFC3339)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().MarkCompleted(ctx, run.doc.Id, metadata); err != nil {
		return err
	}

	s.publish(ctx, events.NewDocumentCompleted(run.doc.Id, run.jobId, map[string]interface{}{
		"chapters":  run.counts.Chapters,
		"knowledge": run.counts.Knowledge,
		"figures":   run.counts.Figures,
		"cards":     run.counts.Cards,
	}))
	return nil
}

func (s *pipelineService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("PIPELINE", "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

// imageFilename keeps an extension the parser already put on the name.
func imageFilename(img parser.ImageData) string {
	name := img.Name
	if name == "" {
		name = "image"
	}
	if img.Format == "" || path.Ext(name) != "" {
		return name
	}
	return name + "." + img.Format
}

func fromParserBBox(b parser.BoundingBox) entity.BoundingBox {
	return entity.BoundingBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func toParserBBox(b entity.BoundingBox) parser.BoundingBox {
	return parser.BoundingBox{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

func withError(details map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
