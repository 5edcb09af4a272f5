package sqs

// Message is one delivery of a queue message. ReceiptHandle identifies this delivery and is
// needed to delete it.
type Message struct {
	ID            string
	ReceiptHandle string
	Body          string
}
