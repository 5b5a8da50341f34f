package service

import (
	"context"
	"log"
)

// Notifier receives the user-visible outcome of every mutation.
type Notifier interface {
	Success(ctx context.Context, op string, message string)
	Failure(ctx context.Context, op string, err error)
}

type LogNotifier struct{}

func (LogNotifier) Success(_ context.Context, op string, message string) {
	log.Printf("[service] %s: %s", op, message)
}

func (LogNotifier) Failure(_ context.Context, op string, err error) {
	log.Printf("[service] WARN: %s failed: %v", op, err)
}
