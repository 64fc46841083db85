package queue

import "encoding/json"

// MessageVersion is bumped when Message changes incompatibly.
const MessageVersion = 1

// Message announces the terminal outcome of a CV generation to downstream
// consumers.
type Message struct {
	SessionID    string `json:"sessionId"`
	CVID         string `json:"cvId"`
	OwnerID      string `json:"ownerId"`
	Outcome      string `json:"outcome"`
	ArtifactPath string `json:"artifactPath,omitempty"`
	ErrorKind    string `json:"errorKind,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	CompletedAt  string `json:"completedAt"`
	Version      int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
