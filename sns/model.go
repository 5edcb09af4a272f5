package sns

const EventTypeJobDispatched = "TranscodeJobDispatched"

// Event announces that a transcoding job was started for an uploaded object.
type Event struct {
	Type          string `json:"type"`
	Bucket        string `json:"bucket"`
	Key           string `json:"key"`
	TaskArn       string `json:"taskArn"`
	MessageID     string `json:"messageID"`
	TransactionID string `json:"transactionID"`
}
