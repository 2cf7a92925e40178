package model

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       *string   `json:"avatar"`
	TgChatID     *string   `json:"tg_chat_id"`
	CreatedAt    time.Time `json:"created_at"`
}
