package domain

import "time"

// Message is one trigger delivery taken from the queue
type Message struct {
	PostingID   string
	NotBefore   time.Time
	EnqueuedAt  time.Time
	DeliveryTag uint64
}
