package constant

// Ключи атрибутов slog
const (
	Error        = "error"
	UserID       = "user_id"
	UserName     = "user_name"
	RoomID       = "room_id"
	ConnectionID = "connection_id"
	QuestionID   = "question_id"
	Command      = "command"
	Role         = "role"
)
