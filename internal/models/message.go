package models

import "time"

// TicketSettledMessage is published on the tickets fanout exchange after a
// table is settled.
type TicketSettledMessage struct {
	Ticket      Ticket    `json:"ticket"`
	PublishedBy string    `json:"published_by"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewTicketSettledMessage(t Ticket, publishedBy string) *TicketSettledMessage {
	return &TicketSettledMessage{
		Ticket:      t.Clone(),
		PublishedBy: publishedBy,
		Timestamp:   time.Now().UTC(),
	}
}
