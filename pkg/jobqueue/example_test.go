package jobqueue_test

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/logger"
)

type invoiceJob struct {
	InvoiceID string `json:"invoice_id"`
}

func Example() {
	m := jobqueue.New(jobqueue.WithLogger(logger.Discard()))

	_, _ = m.CreateQueue(jobqueue.QueueInvoiceProcessing, jobqueue.WithConcurrency(2))
	_ = m.RegisterProcessor(jobqueue.QueueInvoiceProcessing,
		jobqueue.NewProcessor(func(_ context.Context, _ *jobqueue.Job, p invoiceJob) (any, error) {
			return map[string]string{"invoice": p.InvoiceID, "state": "booked"}, nil
		}))

	ctx := context.Background()
	_ = m.Start(ctx)
	defer func() { _ = m.Stop(ctx) }()

	job, _ := m.AddJob(ctx, jobqueue.QueueInvoiceProcessing, invoiceJob{InvoiceID: "INV-42"},
		jobqueue.WithPriority(jobqueue.PriorityHigh))

	for {
		j, _ := m.GetJob(job.ID)
		if j.Status == jobqueue.JobCompleted {
			fmt.Println(j.Status, string(j.Result))
			break
		}
		time.Sleep(time.Millisecond)
	}
	// Output: COMPLETED {"invoice":"INV-42","state":"booked"}
}

func ExampleBackoff_Delay() {
	b := jobqueue.Backoff{Base: time.Second, Multiplier: 2, Max: 5 * time.Second}
	for attempt := 1; attempt <= 4; attempt++ {
		fmt.Println(b.Delay(attempt))
	}
	// Output:
	// 1s
	// 2s
	// 4s
	// 5s
}
