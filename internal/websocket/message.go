package websocket

import (
	"encoding/json"
	"unicode/utf8"
)

const (
	MessageOutput = "output"
	MessageError  = "error"
	MessageInput  = "input"
	MessageResize = "resize"
)

// Message is the JSON frame exchanged with the browser terminal.
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Cols int    `json:"cols,omitempty"`
}

func encode(msgType, data string) []byte {
	b, _ := json.Marshal(Message{Type: msgType, Data: data})
	return b
}

// splitUTF8 returns the longest prefix of p that does not end inside a
// multi-byte sequence, and the remaining tail.
func splitUTF8(p []byte) (complete, tail []byte) {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if !utf8.FullRune(p[i:]) {
			return p[:i], p[i:]
		}
		break
	}
	return p, nil
}
