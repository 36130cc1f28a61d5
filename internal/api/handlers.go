/**
 * @description
 * HTTP handlers for the giving-service: donation submission and callbacks,
 * fee quotes, event listings and member registration, and the internal
 * maintenance endpoints driven by the scheduler.
 */
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/app"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/store"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	giving     *app.GivingService
	events     *app.EventService
	pendingTTL time.Duration
	logger     *slog.Logger
}

func NewHandler(giving *app.GivingService, events *app.EventService, pendingTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{giving: giving, events: events, pendingTTL: pendingTTL, logger: logger}
}

type submitResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	Reference     string          `json:"reference"`
	PaymentURL    string          `json:"paymentUrl"`
	Status        string          `json:"status"`
	IsTestMode    bool            `json:"isTestMode"`
	Amount        domain.Money    `json:"amount"`
	Fees          domain.Money    `json:"fees"`
	Total         domain.Money    `json:"total"`
	Data          json.RawMessage `json:"data,omitempty"`
}

func (h *Handler) handleSubmitDonation(w http.ResponseWriter, r *http.Request) {
	var intent domain.DonationIntent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&intent); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "Invalid request body"})
		return
	}

	res, err := h.giving.Submit(r.Context(), intent)
	if err != nil {
		h.respondSubmitError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, submitResponse{
		Success:       true,
		TransactionID: res.TransactionID,
		Reference:     res.Reference,
		PaymentURL:    res.PaymentURL,
		Status:        res.Status,
		IsTestMode:    res.IsTestMode,
		Amount:        res.Breakdown.Amount,
		Fees:          res.Breakdown.Fees,
		Total:         res.Breakdown.Total,
		Data:          res.Data,
	})
}

func (h *Handler) respondSubmitError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	var subErr *domain.SubmissionError
	switch {
	case errors.As(err, &vErr):
		respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": vErr.Message, "field": vErr.Field})
	case errors.Is(err, domain.ErrUnknownCategory):
		respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "Unknown giving category"})
	case errors.Is(err, domain.ErrSubmissionInProgress):
		respondWithJSON(w, http.StatusConflict, map[string]interface{}{"success": false, "message": "This payment is already being processed"})
	case errors.As(err, &subErr):
		respondWithJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success":   false,
			"message":   subErr.UserMessage(),
			"kind":      string(subErr.Kind),
			"reference": subErr.Reference,
		})
	default:
		h.logger.Error("donation submission failed", "error", err)
		respondWithJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "message": domain.GenericSubmissionMessage})
	}
}

func (h *Handler) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out := h.giving.HandleCallback(r.Context(), app.CallbackParams{
		TransactionID: q.Get("transaction_id"),
		Reference:     q.Get("reference"),
		Status:        q.Get("status"),
	})
	http.Redirect(w, r, out.RedirectURL, http.StatusFound)
}

type quoteResponse struct {
	domain.FeeBreakdown
	CoverFees bool   `json:"cover_fees"`
	FeeRule   string `json:"fee_rule"`
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := domain.ParseMoney(r.URL.Query().Get("amount"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "amount must be a non-negative whole number")
		return
	}
	coverFees := false
	if raw := r.URL.Query().Get("cover_fees"); raw != "" {
		if coverFees, err = strconv.ParseBool(raw); err != nil {
			respondWithError(w, http.StatusBadRequest, "cover_fees must be true or false")
			return
		}
	}
	breakdown, err := h.giving.Quote(amount, coverFees)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, quoteResponse{FeeBreakdown: breakdown, CoverFees: coverFees, FeeRule: h.giving.FeeRule().String()})
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, domain.PaymentTypes())
}

type donationStatusResponse struct {
	Reference     string       `json:"reference"`
	Status        string       `json:"status"`
	Category      string       `json:"category"`
	TransactionID string       `json:"transactionId,omitempty"`
	IsTestMode    bool         `json:"isTestMode"`
	Amount        domain.Money `json:"amount"`
	Fees          domain.Money `json:"fees"`
	Total         domain.Money `json:"total"`
}

func (h *Handler) handleGetDonation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.giving.GetDonation(r.Context(), chi.URLParam(r, "reference"))
	if errors.Is(err, domain.ErrDonationNotFound) {
		respondWithError(w, http.StatusNotFound, "Donation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load donation", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, donationStatusResponse{
		Reference:     rec.Reference,
		Status:        string(rec.Status),
		Category:      rec.Category,
		TransactionID: rec.TransactionID,
		IsTestMode:    rec.IsTestMode,
		Amount:        rec.Breakdown.Amount,
		Fees:          rec.Breakdown.Fees,
		Total:         rec.Breakdown.Total,
	})
}

func (h *Handler) handleListDonations(w http.ResponseWriter, r *http.Request) {
	status := domain.DonationStatus(strings.ToLower(r.URL.Query().Get("status")))
	if status == "" {
		status = domain.DonationSuccess
	}
	switch status {
	case domain.DonationProcessing, domain.DonationPending, domain.DonationSuccess, domain.DonationFailed, domain.DonationExpired:
	default:
		respondWithError(w, http.StatusBadRequest, "unknown donation status")
		return
	}
	records, err := h.giving.ListDonations(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list donations", "status", status, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if records == nil {
		records = []domain.DonationRecord{}
	}
	respondWithJSON(w, http.StatusOK, records)
}

// eventView hides the registrant list from the public listing.
type eventView struct {
	ID                   string             `json:"id"`
	Title                string             `json:"title"`
	Description          string             `json:"description,omitempty"`
	Location             string             `json:"location,omitempty"`
	StartsAt             time.Time          `json:"starts_at"`
	EndsAt               *time.Time         `json:"ends_at,omitempty"`
	Capacity             *int               `json:"capacity,omitempty"`
	CurrentAttendees     int                `json:"current_attendees"`
	SpotsLeft            *int               `json:"spots_left,omitempty"`
	RegistrationDeadline *time.Time         `json:"registration_deadline,omitempty"`
	RegistrationRequired bool               `json:"registration_required"`
	Status               domain.EventStatus `json:"status"`
	IsRegistered         *bool              `json:"is_registered,omitempty"`
	CanRegister          *bool              `json:"can_register,omitempty"`
	BlockReason          string             `json:"block_reason,omitempty"`
	BlockMessage         string             `json:"block_message,omitempty"`
}

func (h *Handler) viewEvent(e domain.Event, member *Member) eventView {
	v := eventView{
		ID:                   e.ID,
		Title:                e.Title,
		Description:          e.Description,
		Location:             e.Location,
		StartsAt:             e.StartsAt,
		EndsAt:               e.EndsAt,
		Capacity:             e.Capacity,
		CurrentAttendees:     e.CurrentAttendees,
		RegistrationDeadline: e.RegistrationDeadline,
		RegistrationRequired: e.RegistrationRequired,
		Status:               e.Status,
	}
	if left := e.SpotsLeft(); left >= 0 {
		v.SpotsLeft = &left
	}
	if member != nil {
		registered := e.IsRegistered(member.ID)
		reason := domain.RegistrationBlock(e, member.ID, h.events.Now())
		can := reason == domain.ReasonNone
		v.IsRegistered = &registered
		v.CanRegister = &can
		v.BlockReason = string(reason)
		v.BlockMessage = reason.Message()
	}
	return v
}

func memberPtr(r *http.Request) *Member {
	if m, ok := MemberFromContext(r.Context()); ok {
		return &m
	}
	return nil
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListEvents(r.Context())
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	member := memberPtr(r)
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, h.viewEvent(e, member))
	}
	respondWithJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.viewEvent(*e, memberPtr(r)))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	member, _ := MemberFromContext(r.Context())
	e, err := h.events.Register(r.Context(), chi.URLParam(r, "id"), member.ID)
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, h.viewEvent(*e, &member))
}

func (h *Handler) handleUnregister(w http.ResponseWriter, r *http.Request) {
	member, _ := MemberFromContext(r.Context())
	e, err := h.events.Unregister(r.Context(), chi.URLParam(r, "id"), member.ID)
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.viewEvent(*e, &member))
}

type createEventRequest struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Location             string     `json:"location"`
	StartsAt             time.Time  `json:"starts_at"`
	EndsAt               *time.Time `json:"ends_at"`
	Capacity             *int       `json:"capacity"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	RegistrationRequired bool       `json:"registration_required"`
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	e, err := h.events.CreateEvent(r.Context(), domain.Event{
		Title:                req.Title,
		Description:          req.Description,
		Location:             req.Location,
		StartsAt:             req.StartsAt,
		EndsAt:               req.EndsAt,
		Capacity:             req.Capacity,
		RegistrationDeadline: req.RegistrationDeadline,
		RegistrationRequired: req.RegistrationRequired,
	})
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, h.viewEvent(*e, nil))
}

func (h *Handler) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.CancelEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, h.viewEvent(*e, nil))
}

func (h *Handler) handleListRegistrants(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondEventError(w, err)
		return
	}
	registrants := e.Registrants
	if registrants == nil {
		registrants = []string{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"event_id":          e.ID,
		"current_attendees": e.CurrentAttendees,
		"registrants":       registrants,
	})
}

func (h *Handler) respondEventError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		respondWithError(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, store.ErrConflict):
		respondWithError(w, http.StatusConflict, "An event with this id already exists")
	case errors.Is(err, domain.ErrNotRegistered):
		respondWithJSON(w, http.StatusConflict, map[string]string{
			"message": "You are not registered for this event.",
			"reason":  "not_registered",
		})
	case errors.Is(err, domain.ErrRegistrationClosed):
		reason := domain.RegistrationReasonOf(err)
		respondWithJSON(w, http.StatusConflict, map[string]string{
			"message": reason.Message(),
			"reason":  string(reason),
		})
	case errors.As(err, &vErr):
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"message": vErr.Message, "field": vErr.Field})
	default:
		h.logger.Error("event request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (h *Handler) handleCompletePastEvents(w http.ResponseWriter, r *http.Request) {
	n, err := h.events.CompletePastEvents(r.Context())
	if err != nil {
		h.logger.Error("failed to complete past events", "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"completed": n})
}

func (h *Handler) handleExpireStaleDonations(w http.ResponseWriter, r *http.Request) {
	n, err := h.giving.ExpireStaleDonations(r.Context(), h.pendingTTL)
	if err != nil {
		h.logger.Error("failed to expire stale donations", "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"expired": n})
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"message": message})
}
