package utils

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/gofiber/websocket/v2"
)

var errEmptyFrame = errors.New("empty frame")

// SafeJSONParse decodes a websocket frame, rejecting empty payloads.
func SafeJSONParse(data []byte, v interface{}) error {
	if len(data) == 0 {
		return errEmptyFrame
	}
	return json.Unmarshal(data, v)
}

// SendJSON writes payload as one text frame. The connection does not allow
// concurrent writers; callers serialize.
func SendJSON(c *websocket.Conn, payload interface{}) error {
	return c.WriteJSON(payload)
}

// LogError logs an error if it's not nil
func LogError(err error, context string) {
	if err != nil {
		log.Printf("Error [%s]: %v", context, err)
	}
}
