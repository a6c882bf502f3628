package domain

import "time"

// RawMessage is a newsletter email as handed over by a message source.
type RawMessage struct {
	ID         string
	Sender     string
	Subject    string
	ReceivedAt time.Time
	Body       string
	// HTML reports whether Body carries markup.
	HTML bool
}

// Link is a hyperlink found in a message body, in document order.
type Link struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// StructuredRecord is the bounded output handed to a record sink.
type StructuredRecord struct {
	MessageID       string          `json:"message_id" validate:"required"`
	Title           string          `json:"title" validate:"required"`
	Category        string          `json:"category" validate:"required"`
	SourceURL       string          `json:"source_url" validate:"required,url"`
	PublishedDate   time.Time       `json:"published_date" validate:"required"`
	Description     string          `json:"description" validate:"required"`
	ContentLink     *string         `json:"content_link,omitempty" validate:"omitempty,url"`
	Confidence      *float64        `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	OtherCategories []CategoryScore `json:"other_categories,omitempty" validate:"dive"`
	Sender          string          `json:"sender,omitempty"`
	Links           []Link          `json:"links,omitempty"`
	Body            string          `json:"-"`
}
