package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"docflash-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExport_AnkiAndNotion(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.processed(t, nil, "biology.txt", twoChapterText)
	cards := env.cards(t, id)
	require.NotEmpty(t, cards)
	svc := NewExportService(env.factory, env.store, logger.NewNopLogger())

	anki, err := svc.ExportAnki(ctx, nil, id)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(anki.Filename, "-anki.csv"))
	r := csv.NewReader(bytes.NewReader(anki.Data))
	r.Comma = ';'
	r.FieldsPerRecord = 3
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(cards))
	assert.True(t, strings.HasPrefix(rows[0][2], "docflash "))

	notion, err := svc.ExportNotion(ctx, nil, id)
	require.NoError(t, err)
	rows, err = csv.NewReader(bytes.NewReader(notion.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(cards)+1)
	assert.Equal(t, []string{"Front", "Back", "Type", "Chapter", "Difficulty"}, rows[0])

	other := uuid.New()
	_, err = svc.ExportAnki(ctx, &other, uuid.New())
	require.Error(t, err)
}

func TestExport_BackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.processed(t, nil, "biology.txt", twoChapterText)
	svc := NewExportService(env.factory, env.store, logger.NewNopLogger())

	backup, err := svc.Backup(ctx, nil, id)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(backup.Data)), "\n")
	assert.Contains(t, lines[0], `"type":"header"`)
	assert.Contains(t, lines[1], `"type":"document"`)

	user := uuid.New()
	result, err := svc.Restore(ctx, &user, bytes.NewReader(backup.Data))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.NotEqual(t, id, result.DocumentId)

	uow := env.factory.NewUnitOfWork(ctx)
	before, err := documentCounts(ctx, uow, id)
	require.NoError(t, err)
	after, err := documentCounts(ctx, uow, result.DocumentId)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.EqualValues(t, before.Cards, result.ImportedCards)
	assert.EqualValues(t, before.Knowledge, result.ImportedKnowledge)

	restored := env.document(t, result.DocumentId)
	require.NotNil(t, restored.UserId)
	assert.Equal(t, user, *restored.UserId)
	assert.Equal(t, id.String(), restored.Metadata["restored_from"])
	assert.NotEqual(t, env.document(t, id).StoragePath, restored.StoragePath)
	exists, err := env.store.Exists(ctx, restored.StoragePath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExport_RestoreRejectsOrphans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewExportService(env.factory, env.store, logger.NewNopLogger())

	_, err := svc.Restore(ctx, nil, strings.NewReader(`{"type":"chapter","data":{"title":"x"}}`+"\n"))
	require.Error(t, err)

	backup := strings.Join([]string{
		`{"type":"header","data":{"version":1}}`,
		`{"type":"document","data":{"id":"` + uuid.NewString() + `","filename":"a.txt","file_type":"text"}}`,
		`{"type":"knowledge","data":{"id":"` + uuid.NewString() + `","chapter_id":"` + uuid.NewString() + `","kind":"FACT","text":"orphan"}}`,
		`not json`,
	}, "\n")
	result, err := svc.Restore(ctx, nil, strings.NewReader(backup))
	require.NoError(t, err)
	assert.Len(t, result.Errors, 2)
	assert.Zero(t, result.ImportedKnowledge)
}
