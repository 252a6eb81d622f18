package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/ticobot/ticobot/pkg/ingest"
	"github.com/ticobot/ticobot/pkg/models"
)

var _ models.Task = &ChunkEmbedderTask{}

func NewChunkEmbedderTask(
	appState *models.AppState,
) *ChunkEmbedderTask {
	return &ChunkEmbedderTask{
		BaseTask: BaseTask{
			appState: appState,
		},
		ingestService: ingest.NewService(appState),
	}
}

// ChunkEmbedderTask embeds pending chunks and writes their vectors to the
// vector store.
type ChunkEmbedderTask struct {
	BaseTask
	ingestService *ingest.Service
}

func (ct *ChunkEmbedderTask) Execute(
	ctx context.Context,
	msg *message.Message,
) error {
	ctx, done := context.WithTimeout(ctx, TaskTimeout*time.Second)
	defer done()

	documentUUID := msg.Metadata.Get("document_uuid")
	log.Debugf("ChunkEmbedderTask called for document %s", documentUUID)

	var embedTasks []models.ChunkEmbedTask
	err := json.Unmarshal(msg.Payload, &embedTasks)
	if err != nil {
		return err
	}

	err = ct.Process(ctx, embedTasks)
	if err != nil {
		return err
	}

	msg.Ack()

	return nil
}

func (ct *ChunkEmbedderTask) Process(
	ctx context.Context,
	embedTasks []models.ChunkEmbedTask,
) error {
	uuids := make([]uuid.UUID, len(embedTasks))
	for i, embedTask := range embedTasks {
		uuids[i] = embedTask.UUID
	}

	chunks, err := ct.appState.DocumentStore.GetChunks(ctx, uuids)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			log.Warnf(
				"ChunkEmbedderTask GetChunks not found. Were the records deleted? %v",
				err,
			)
			// Don't error out
			return nil
		}
		return fmt.Errorf("ChunkEmbedderTask retrieve chunks failed: %w", err)
	}

	if len(chunks) == 0 {
		log.Warnf("ChunkEmbedderTask no chunks found for given uuids")
		return nil
	}

	err = ct.ingestService.EmbedChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("ChunkEmbedderTask embed failed: %w", err)
	}

	return nil
}
