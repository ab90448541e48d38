package taskqueue

import (
	"context"
	"log"

	"github.com/hibiken/asynq"
)

// Queue owns the asynq client used to enqueue tasks and the server that works them
type Queue struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewQueue creates a queue backed by the Redis server at redisAddr
func NewQueue(redisAddr string, concurrency int) *Queue {
	if concurrency <= 0 {
		concurrency = 4
	}
	opt := asynq.RedisClientOpt{Addr: redisAddr}
	return &Queue{
		client: asynq.NewClient(opt),
		server: asynq.NewServer(opt, asynq.Config{
			Concurrency: concurrency,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Printf("TASKQUEUE: Task %s failed (attempt %d/%d): %v", task.Type(), retried+1, maxRetry+1, err)
			}),
		}),
		mux: asynq.NewServeMux(),
	}
}

// HandleFunc registers the handler for a task type; call before Start
func (q *Queue) HandleFunc(taskType string, handler func(context.Context, *asynq.Task) error) {
	q.mux.HandleFunc(taskType, handler)
}

// EnqueueDelivery enqueues one notification delivery
func (q *Queue) EnqueueDelivery(ctx context.Context, p DeliveryPayload) error {
	task, err := NewDeliveryTask(p)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		log.Printf("TASKQUEUE: Failed to enqueue %s for %s: %v", TypeNotificationDeliver, p.Provider, err)
		return err
	}
	log.Printf("TASKQUEUE: Successfully enqueued task %s (%s via %s)", info.ID, p.Category, p.Provider)
	return nil
}

// Start starts the workers in the background
func (q *Queue) Start() error {
	log.Println("TASKQUEUE: Starting Asynq workers")
	return q.server.Start(q.mux)
}

// Stop waits for running tasks and stops the workers
func (q *Queue) Stop() {
	log.Println("TASKQUEUE: Stopping workers...")
	q.server.Shutdown()
	q.client.Close()
	log.Println("TASKQUEUE: Workers stopped")
}
