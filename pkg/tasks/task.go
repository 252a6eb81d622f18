package tasks

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ticobot/ticobot/internal"
	"github.com/ticobot/ticobot/pkg/models"
)

var log = internal.GetLogger()

type BaseTask struct {
	appState *models.AppState
}

func (b *BaseTask) Execute(
	ctx context.Context, // nolint: revive
	msg *message.Message, // nolint: revive
) error {
	return nil
}

func (b *BaseTask) HandleError(err error) {
	log.Errorf("Task HandleError error: %s", err)
}

// Initialize registers the task handlers with the router. There is one task
// in this system: embedding pending chunks.
func Initialize(ctx context.Context, appState *models.AppState, router models.TaskRouter) {
	log.Info("Initializing tasks")

	addTask := func(ctx context.Context, name string, taskType models.TaskTopic, enabled bool, newTask func() models.Task) {
		if enabled {
			task := newTask()
			router.AddTask(ctx, name, taskType, task)
			log.Infof("%s task added to task router", name)
		}
	}

	addTask(
		ctx,
		string(models.ChunkEmbedderTopic),
		models.ChunkEmbedderTopic,
		appState.Config.Ingest.Async,
		func() models.Task { return NewChunkEmbedderTask(appState) },
	)
}
