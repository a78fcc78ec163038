package domain

// AuthKind selects the bot flow a one-time code belongs to.
type AuthKind string

const (
	AuthKindRegister AuthKind = "register"
	AuthKindLogin    AuthKind = "login"
)

func (k AuthKind) Valid() bool {
	return k == AuthKindRegister || k == AuthKindLogin
}

// AuthCodeLength is the length of the code the bot hands out.
const AuthCodeLength = 6

type GenerateSessionRequest struct {
	Type AuthKind `json:"type"`
}

type AuthSession struct {
	Success     bool   `json:"success"`
	SessionCode string `json:"session_code"`
	BotURL      string `json:"bot_url"`
	Error       string `json:"error,omitempty"`
}

type CodeRequest struct {
	Code string `json:"code"`
}

type AuthUser struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
}

type CodeResponse struct {
	Success bool      `json:"success"`
	User    *AuthUser `json:"user,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}
