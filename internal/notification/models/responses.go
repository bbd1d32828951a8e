package models

import "time"

type Response struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Category string    `json:"category"`
	Read     bool      `json:"read"`
	SentAt   time.Time `json:"sent_at"`
}

type ListResponse struct {
	Notifications []Response `json:"notifications"`
	Unread        int        `json:"unread"`
}

type UnreadResponse struct {
	Unread int `json:"unread"`
}

type MarkAllResponse struct {
	Updated int `json:"updated"`
}

func ToResponse(n *Notification) Response {
	return Response{
		ID:       n.ID.String(),
		Title:    n.Title,
		Message:  n.Message,
		Category: string(n.Category),
		Read:     n.Read,
		SentAt:   n.SentAt,
	}
}

func ToResponses(items []*Notification) []Response {
	out := make([]Response, 0, len(items))
	for _, n := range items {
		out = append(out, ToResponse(n))
	}
	return out
}
