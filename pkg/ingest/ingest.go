package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ticobot/ticobot/internal"
	"github.com/ticobot/ticobot/pkg/models"
)

var log = internal.GetLogger()

const DefaultEmbedBatchSize = 64

// Service turns uploaded documents into persisted, embedded chunks.
type Service struct {
	appState *models.AppState
	chunker  *Chunker
}

func NewService(appState *models.AppState) *Service {
	cfg := appState.Config
	return &Service{
		appState: appState,
		chunker:  NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap),
	}
}

// IngestDocument persists a document and its chunks. Embedding happens
// inline unless async ingestion is configured, in which case the chunks are
// handed to the task queue and the response reports Embedded false.
func (svc *Service) IngestDocument(
	ctx context.Context,
	request *models.CreateDocumentRequest,
) (*models.CreateDocumentResponse, error) {
	pieces := svc.chunker.Split(request.Content)
	if len(pieces) == 0 {
		return nil, models.NewBadRequestError("document content produced no chunks")
	}

	chunks := make([]models.Chunk, len(pieces))
	for i, content := range pieces {
		tokenCount, err := svc.appState.EmbeddingProvider.CountTokens(content)
		if err != nil {
			return nil, fmt.Errorf("failed to count chunk tokens: %w", err)
		}
		chunks[i] = models.Chunk{
			ChunkIndex: i,
			Content:    content,
			TokenCount: tokenCount,
		}
	}

	document := &models.Document{
		Title:       request.Title,
		Party:       request.Party,
		Source:      request.Source,
		SourceURL:   request.SourceURL,
		PublishedAt: request.PublishedAt,
		Metadata:    request.Metadata,
	}
	documentUUID, err := svc.appState.DocumentStore.CreateDocument(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	chunkUUIDs, err := svc.appState.DocumentStore.CreateChunks(ctx, documentUUID, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].UUID = chunkUUIDs[i]
		chunks[i].DocumentUUID = documentUUID
	}

	response := &models.CreateDocumentResponse{
		UUID:       documentUUID,
		ChunkCount: len(chunks),
	}

	if svc.appState.Config.Ingest.Async && svc.appState.TaskPublisher != nil {
		if err := svc.publishEmbedTasks(documentUUID, chunkUUIDs); err != nil {
			return nil, err
		}
		log.Debugf("document %s: %d chunks queued for embedding", documentUUID, len(chunks))
		return response, nil
	}

	if err := svc.EmbedChunks(ctx, chunks); err != nil {
		return nil, err
	}
	response.Embedded = true

	return response, nil
}

// EmbedChunks embeds chunk contents in batches and writes the vectors to the
// vector store. Used both inline and by the chunk embedder task.
func (svc *Service) EmbedChunks(ctx context.Context, chunks []models.Chunk) error {
	batchSize := svc.appState.Config.Ingest.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Content
		}
		response, err := svc.appState.EmbeddingProvider.GenerateBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunk batch: %w", err)
		}
		for i := range batch {
			batch[i].Embedding = response.Embeddings[i]
		}

		if err := svc.appState.VectorStore.UpsertEmbeddings(ctx, batch); err != nil {
			return fmt.Errorf("failed to store chunk embeddings: %w", err)
		}
	}

	return nil
}

func (svc *Service) publishEmbedTasks(documentUUID uuid.UUID, chunkUUIDs []uuid.UUID) error {
	tasks := make([]models.ChunkEmbedTask, len(chunkUUIDs))
	for i, chunkUUID := range chunkUUIDs {
		tasks[i] = models.ChunkEmbedTask{UUID: chunkUUID}
	}
	err := svc.appState.TaskPublisher.PublishChunks(
		map[string]string{"document_uuid": documentUUID.String()},
		tasks,
	)
	if err != nil {
		return fmt.Errorf("failed to publish chunk embed tasks: %w", err)
	}
	return nil
}
