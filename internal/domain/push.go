package domain

import "regexp"

// PushPlatform is the device platform of a push destination.
type PushPlatform string

// Supported push platforms
const (
	PushPlatformIOS     PushPlatform = "ios"
	PushPlatformAndroid PushPlatform = "android"
)

var expoTokenRegex = regexp.MustCompile(`^(ExponentPushToken|ExpoPushToken)\[.+\]$`)

// PushDestination is an active device registration for a member.
type PushDestination struct {
	MemberID int64        `json:"member_id"`
	Token    string       `json:"token"`
	Platform PushPlatform `json:"platform"`
}

// IsLikelyExpoPushToken reports whether token has the shape of an Expo push
// token.
func IsLikelyExpoPushToken(token string) bool {
	return expoTokenRegex.MatchString(token)
}

// PushMessage is one message to one push destination.
type PushMessage struct {
	To       string         `json:"to"`
	Title    string         `json:"title,omitempty"`
	Body     string         `json:"body,omitempty"`
	Sound    string         `json:"sound,omitempty"`
	Priority string         `json:"priority,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// PushResult summarizes a batch send. InvalidTokens lists destinations the
// gateway reported as no longer registered.
type PushResult struct {
	Sent          int
	InvalidTokens []string
}

// NewPushMessage builds the push message that mirrors notification n for the
// device token.
func NewPushMessage(token string, n Notification) PushMessage {
	data := make(map[string]any, len(n.Payload)+3)
	data["type"] = n.Type
	data["task_id"] = n.SourceID
	data["source_type"] = n.SourceType
	for k, v := range n.Payload {
		data[k] = v
	}
	return PushMessage{
		To:       token,
		Title:    n.Title,
		Body:     n.Message,
		Sound:    "default",
		Priority: "high",
		Data:     data,
	}
}
