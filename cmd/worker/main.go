package main

import (
	"context"
	"log"
	"os"

	"fitmixapi/dbhelper"
	"fitmixapi/services"
	"fitmixapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
)

func runScheduler() {

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")}, &asynq.SchedulerOpts{
		LogLevel: asynq.InfoLevel,
	})

	scheduled := []struct {
		cron string
		task *asynq.Task
		desc string
	}{
		{
			cron: "*/15 * * * *",
			task: tasks.NewStaleRenderSweepTask(),
			desc: "Stale pending render sweep",
		},
	}

	for _, t := range scheduled {
		entryID, err := scheduler.Register(t.cron, t.task)
		if err != nil {
			log.Fatalf("Failed to register task '%s': %v", t.desc, err)
		}
		log.Printf("Registered task '%s' with ID: %s, cron: %s", t.desc, entryID, t.cron)
	}

	log.Println("Starting scheduler...")
	if err := scheduler.Run(); err != nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}

func main() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: os.Getenv("ASYNC_BROKER_ADDRESS")},
		asynq.Config{Concurrency: 10, Queues: map[string]int{
			"generate": 7,
			"default":  3,
		}},
	)
	awsService := &services.AWSService{}
	llmProcessor := &services.GoogleLLMStyleProcessor{}
	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("[Queue] Failed to initialize AWS provider: S3")
	}
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalf("error initializing firebase app: %v\n", err)
		return
	}
	mux := asynq.NewServeMux()
	db := dbhelper.SetupDB()
	mux.HandleFunc(tasks.TypeOutfitRender, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleOutfitRenderTask(ctx, t, db, llmProcessor, awsService, app)
	})
	mux.HandleFunc(tasks.TypeStaleRenderSweep, func(ctx context.Context, t *asynq.Task) error {
		return tasks.HandleStaleRenderSweepTask(ctx, t, db)
	})

	go runScheduler()
	if err := srv.Run(mux); err != nil {
		log.Fatal(err)
	}
}
