package internal

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	flashCookie  = "karting_flash"
	visitsCookie = "karting_visits"
	flashOutKey  = "flash_out"

	visitsMaxAge = 14 * 24 * 60 * 60
)

const (
	levelInfo    = "info"
	levelSuccess = "success"
	levelError   = "error"
)

// Message is a one-shot notice shown on the next page the client loads.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// addFlash queues a message for the next request. It appends to messages
// still waiting in the incoming cookie unless this request drained them.
func (a *App) addFlash(c *gin.Context, level, text string) {
	var msgs []Message
	if v, ok := c.Get(flashOutKey); ok {
		msgs = v.([]Message)
	} else if raw, err := c.Cookie(flashCookie); err == nil {
		msgs = decodeFlashes(raw)
	}
	msgs = append(msgs, Message{Level: level, Text: text})
	c.Set(flashOutKey, msgs)

	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	a.setCookie(c, flashCookie, base64.RawURLEncoding.EncodeToString(raw), 0)
}

// takeFlashes returns the queued messages and clears them.
func (a *App) takeFlashes(c *gin.Context) []Message {
	c.Set(flashOutKey, []Message{})
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return []Message{}
	}
	a.setCookie(c, flashCookie, "", -1)
	return decodeFlashes(raw)
}

// decodeFlashes reads the cookie value. A tampered value yields no messages.
func decodeFlashes(raw string) []Message {
	out := []Message{}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return []Message{}
	}
	return out
}

// countVisit bumps the home page visit counter and returns the new value.
func (a *App) countVisit(c *gin.Context) int {
	n := 0
	if raw, err := c.Cookie(visitsCookie); err == nil {
		n, _ = strconv.Atoi(raw)
	}
	n++
	a.setCookie(c, visitsCookie, strconv.Itoa(n), visitsMaxAge)
	return n
}
