package model

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type AuthResponse struct {
	OK    bool     `json:"ok"`
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type AuthMeResponse struct {
	OK   bool     `json:"ok"`
	User UserView `json:"user"`
}

type HealthResponse struct {
	OK      bool    `json:"ok"`
	Service string  `json:"service"`
	Uptime  float64 `json:"uptime"`
}

type DBHealthResponse struct {
	OK    bool   `json:"ok"`
	DB    string `json:"db"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Hint  string `json:"hint,omitempty"`
}
