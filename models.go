package authclient

import "time"

// Credentials is the transient login and registration payload.
// It is never persisted.
type Credentials struct {
	Identity string `json:"email"`
	Secret   string `json:"password"`
}

// String hides the secret.
func (c Credentials) String() string {
	return "identity=" + c.Identity + " secret=***"
}

// PasswordChange is the payload for PUT /user/password
type PasswordChange struct {
	Identity  string `json:"email"`
	OldSecret string `json:"oldPassword"`
	NewSecret string `json:"newPassword"`
}

// Result is what store operations hand back to the UI layer.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginResponse is the body of a successful login.
// Token is empty when the server uses cookie sessions.
type LoginResponse struct {
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// MessageResponse is the generic {message, success} envelope.
type MessageResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// StatusResponse is the body of GET /status
type StatusResponse = MessageResponse

// Payment is one row of GET /payments
type Payment struct {
	ID           int       `json:"id"`
	CustomerName string    `json:"customer_name"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	PaymentDate  time.Time `json:"payment_date"`
}

// DashboardSummary is the body of GET /dashboard/summary
type DashboardSummary struct {
	TotalRevenue      float64 `json:"total_revenue"`
	CompletedPayments int64   `json:"completed_payments"`
	PendingPayments   int64   `json:"pending_payments"`
}

// ChartPoint is one point of GET /dashboard/chart
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}
