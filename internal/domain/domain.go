package domain

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role" enum:"admin,member"`
	Plan      string `json:"plan" enum:"free,pro,studio"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

func (u User) IsAdmin() bool { return u.Role == "admin" }

type Task struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"owner_id"`
	ClientID    *string `json:"client_id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status" enum:"pending,in_progress,completed,cancelled"`
	Priority    string  `json:"priority" enum:"low,medium,high"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Client struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Order struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	ClientID  *string `json:"client_id,omitempty"`
	Title     string  `json:"title"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency" enum:"EUR,USD"`
	Status    string  `json:"status" enum:"draft,sent,paid,cancelled"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type CalendarEvent struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	ClientID  *string `json:"client_id,omitempty"`
	Title     string  `json:"title"`
	Location  string  `json:"location,omitempty"`
	StartAt   string  `json:"start_at" format:"date-time"`
	EndAt     *string `json:"end_at,omitempty" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

// UsageRecord is an append-only ledger row. Monthly sums of count feed the
// quota guard; rows are never updated or deleted.
type UsageRecord struct {
	ID         int64  `json:"id"`
	UserID     string `json:"user_id"`
	ActionType string `json:"action_type"`
	Resource   string `json:"resource"`
	Count      int    `json:"count"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// AuditEntry records one executed assistant intent and its outcome.
type AuditEntry struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	Summary     string `json:"summary"`
	Resource    string `json:"resource"`
	PayloadJSON string `json:"payload_json"`
	ResultJSON  string `json:"result_json"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}
