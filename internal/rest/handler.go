package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"

	"github.com/bcal-io/bcal/pkg/models"
	"github.com/bcal-io/bcal/pkg/pgstore"
	"github.com/bcal-io/bcal/pkg/scheduling"
)

const (
	tokenTTL   = 24 * time.Hour
	dateLayout = "2006-01-02"
)

type App interface {
	Authenticate(ctx context.Context, email, password string) (models.User, error)

	HostSlots(ctx context.Context, hostID int, date time.Time) ([]models.Slot, error)
	TeamAvailability(ctx context.Context, teamID int, date time.Time) (models.TeamAvailability, error)
	ListTeams(ctx context.Context) ([]models.TeamSummary, error)

	HostRules(ctx context.Context, hostID int) ([]models.AvailabilityRule, error)
	CreateRule(ctx context.Context, hostID int, req models.AvailabilityRuleRequest) (models.AvailabilityRule, error)
	UpdateRule(ctx context.Context, id, hostID int, req models.AvailabilityRuleRequest) (models.AvailabilityRule, error)
	DeactivateRule(ctx context.Context, id, hostID int) (models.AvailabilityRule, error)

	CreateBooking(ctx context.Context, req models.BookingRequest) (models.BookingResponse, error)
	GetBooking(ctx context.Context, id int) (models.Booking, error)
	UserBookings(ctx context.Context, userID int) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int, status models.BookingStatus) (models.Booking, error)
	RescheduleBooking(ctx context.Context, id int, start, end time.Time) (models.BookingResponse, error)
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	_, err := fmt.Fprintf(w, "%s\n", s.version)
	if err != nil {
		s.log.Warnf("err during writing to connection: %v", err)
	}
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	user, err := s.app.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		s.writeResponse(w, http.StatusUnauthorized, err)
		return
	}
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           user.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		s.log.Warnf("err during signing token: %v", err)
		s.writeResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.writeResponse(w, http.StatusOK, models.TokenResponse{AccessToken: token})
}

func (s *Server) hostSlotsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	date, err := queryDate(r)
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	slots, err := s.app.HostSlots(ctx, id, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, slots)
}

func (s *Server) teamAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	date, err := queryDate(r)
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	availability, err := s.app.TeamAvailability(ctx, id, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, availability)
}

func (s *Server) listTeamsHandler(w http.ResponseWriter, r *http.Request) {
	teams, err := s.app.ListTeams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, teams)
}

func (s *Server) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.app.CreateBooking(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusCreated, resp)
}

func (s *Server) getBookingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	booking, err := s.app.GetBooking(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, booking)
}

func (s *Server) listBookingsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := s.getClaims(ctx)
	if claims == nil {
		s.writeResponse(w, http.StatusUnauthorized, ErrUnauthorised)
		return
	}
	bookings, err := s.app.UserBookings(ctx, claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, bookings)
}

func (s *Server) updateBookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var req models.BookingStatusRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	booking, err := s.app.UpdateBookingStatus(ctx, id, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, booking)
}

func (s *Server) rescheduleBookingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var req models.RescheduleRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.StartTime == nil || req.EndTime == nil {
		s.writeResponse(w, http.StatusBadRequest, errors.New("startTime and endTime are required"))
		return
	}
	resp, err := s.app.RescheduleBooking(ctx, id, *req.StartTime, *req.EndTime)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, resp)
}

func (s *Server) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := s.getClaims(ctx)
	if claims == nil {
		s.writeResponse(w, http.StatusUnauthorized, ErrUnauthorised)
		return
	}
	rules, err := s.app.HostRules(ctx, claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, rules)
}

func (s *Server) createRuleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := s.getClaims(ctx)
	if claims == nil {
		s.writeResponse(w, http.StatusUnauthorized, ErrUnauthorised)
		return
	}
	var req models.AvailabilityRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	rule, err := s.app.CreateRule(ctx, claims.UserID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusCreated, rule)
}

func (s *Server) updateRuleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := s.getClaims(ctx)
	if claims == nil {
		s.writeResponse(w, http.StatusUnauthorized, ErrUnauthorised)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	var req models.AvailabilityRuleRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	rule, err := s.app.UpdateRule(ctx, id, claims.UserID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, rule)
}

func (s *Server) deleteRuleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := s.getClaims(ctx)
	if claims == nil {
		s.writeResponse(w, http.StatusUnauthorized, ErrUnauthorised)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, err)
		return
	}
	rule, err := s.app.DeactivateRule(ctx, id, claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, rule)
}

// writeError maps domain errors onto HTTP statuses: validation failures are
// 400, policy rejections 422, lost races and exhausted teams 409, missing
// records 404, the rest 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *scheduling.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeResponse(w, http.StatusBadRequest, err)
	case errors.Is(err, scheduling.ErrInsufficientNotice), errors.Is(err, scheduling.ErrBeyondLeadTime):
		s.writeResponse(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, scheduling.ErrSlotConflict), errors.Is(err, scheduling.ErrNoEligibleMember):
		s.writeResponse(w, http.StatusConflict, err)
	case errors.Is(err, pgstore.ErrUserNotFound),
		errors.Is(err, pgstore.ErrRuleNotFound),
		errors.Is(err, pgstore.ErrBookingNotFound),
		errors.Is(err, pgstore.ErrTeamNotFound):
		s.writeResponse(w, http.StatusNotFound, err)
	case errors.Is(err, models.ErrInvalidCredentials):
		s.writeResponse(w, http.StatusUnauthorized, err)
	default:
		s.log.Warnf("err handling %s %s: %v", r.Method, r.URL.Path, err)
		s.writeResponse(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if x, ok := data.(error); ok {
		if err := json.NewEncoder(w).Encode(ErrorResponse{Error: x.Error()}); err != nil {
			s.log.Warnf("err during encoding error: %v", err)
		}
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("err during encoding response: %v", err)
	}
}

func queryDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, errors.New("date query parameter is required")
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("err parsing date: %w", err)
	}
	return date, nil
}

type ErrorResponse struct {
	Error string `json:"error"`
}
