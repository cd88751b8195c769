package api

// AppointmentRequest is the payload for create and full update. Dates
// travel as ISO calendar dates, times of day as "HH:MM".
type AppointmentRequest struct {
	Title       string `json:"title"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	Notes       string `json:"notes"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Details  string   `json:"details,omitempty"`
	Messages []string `json:"messages,omitempty"`
}
