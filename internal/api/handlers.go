package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/apptbook/apptbook/internal/appointment"
	redisclient "github.com/apptbook/apptbook/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// requestToParams converts the wire payload, reporting unparseable
// date/time fields before the validator ever sees them.
func requestToParams(req AppointmentRequest) (appointment.Params, error) {
	day, err := time.ParseInLocation("2006-01-02", req.Date, time.Local)
	if err != nil {
		return appointment.Params{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	start, err := appointment.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return appointment.Params{}, fmt.Errorf("start_time must be HH:MM: %w", err)
	}
	end, err := appointment.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return appointment.Params{}, fmt.Errorf("end_time must be HH:MM: %w", err)
	}

	return appointment.Params{
		Title:       req.Title,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		Date:        day,
		StartTime:   start,
		EndTime:     end,
		Status:      appointment.Status(req.Status),
		Notes:       req.Notes,
	}, nil
}

// handleServiceError maps the service's tagged error types onto HTTP
// statuses. Anything unrecognized is a storage or system fault.
func handleServiceError(w http.ResponseWriter, err error) {
	var vErr *appointment.ValidationError
	var cErr *appointment.ConflictError

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "validation_failed",
			Messages: vErr.Messages,
		})
	case errors.As(err, &cErr):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:    "schedule_conflict",
			Messages: []string{cErr.Error()},
		})
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "Appointment not found.")
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "the calendar day is being modified, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params, err := requestToParams(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.Create(r.Context(), params)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, appt)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

// listAppointmentsHandler serves GET /appointments. Exactly one view
// of the collection is chosen per request: free-text search (q),
// status filter, inclusive date range (from/to), or the sorted full
// listing.
func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			appts []appointment.Appointment
			err   error
		)
		switch {
		case q.Get("q") != "":
			appts, err = svc.Search(r.Context(), q.Get("q"))
		case q.Get("status") != "":
			status := appointment.Status(q.Get("status"))
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", fmt.Sprintf("Invalid status: %s", status))
				return
			}
			appts, err = svc.FilterByStatus(r.Context(), status)
		case q.Get("from") != "" && q.Get("to") != "":
			var from, to time.Time
			if from, err = time.ParseInLocation("2006-01-02", q.Get("from"), time.Local); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_range", "from must be YYYY-MM-DD")
				return
			}
			if to, err = time.ParseInLocation("2006-01-02", q.Get("to"), time.Local); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_range", "to must be YYYY-MM-DD")
				return
			}
			appts, err = svc.FilterByDateRange(r.Context(), from, to)
		default:
			appts, err = svc.ListAll(r.Context(), appointment.ParseSortKey(q.Get("sort")))
		}
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if appts == nil {
			appts = []appointment.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

func updateAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params, err := requestToParams(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		appt, err := svc.Update(r.Context(), chi.URLParam(r, "id"), params)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func deleteAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func updateStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), appointment.Status(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func upcomingAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.Upcoming(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if appts == nil {
			appts = []appointment.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

func todayAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.Today(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if appts == nil {
			appts = []appointment.Appointment{}
		}
		writeJSON(w, http.StatusOK, appts)
	}
}

func statsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.DashboardStats(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
