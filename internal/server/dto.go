package server

import (
	"gigline/internal/assistant"
)

// Request payloads

type DevLoginRequest struct {
	Email string `json:"email" format:"email"`
	Name  string `json:"name,omitempty"`
	Plan  string `json:"plan,omitempty" enum:"free,pro,studio"`
	Role  string `json:"role,omitempty" enum:"admin,member"`
}

type AssistantMessageRequest struct {
	Message string                  `json:"message"`
	Pending *assistant.Confirmation `json:"pending,omitempty"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type MeResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	Plan  string `json:"plan"`
}

type UsageResponse struct {
	Plan       string         `json:"plan"`
	Used       int            `json:"used"`
	Limit      int            `json:"limit"`
	Remaining  int            `json:"remaining"`
	ByResource map[string]int `json:"by_resource,omitempty"`
}
