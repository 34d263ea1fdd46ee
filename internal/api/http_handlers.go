package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"barberbook/internal/api/bookingv1"
	"barberbook/internal/domain"
	"barberbook/internal/models"
	"barberbook/internal/service"

	"github.com/gorilla/mux"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id", domain.ErrInvalidInput)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// parseTime accepts RFC 3339 timestamps and bare dates (UTC midnight).
func parseTime(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(models.DateLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", domain.ErrInvalidInput, name)
}

func parseStatuses(raw string) ([]models.BookingStatus, error) {
	var out []models.BookingStatus
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, ok := models.ParseBookingStatus(part)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, part)
		}
		out = append(out, st)
	}
	return out, nil
}

func parseCoordinate(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func (s *HTTPServer) getBarberSchedule(w http.ResponseWriter, r *http.Request) {
	barberID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	day, err := s.svc.Schedule.GetBarberSchedule(r.Context(), barberID, strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *HTTPServer) toggleSlotAvailability(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	barberID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	slot, err := time.Parse(time.RFC3339, mux.Vars(r)["slot_start"])
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: slot_start must be RFC 3339", domain.ErrInvalidInput))
		return
	}

	st, err := s.svc.Schedule.ToggleSlotAvailability(r.Context(), actor, barberID, slot)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingv1.ToggleSlotAvailabilityResponse{BarberID: barberID, SlotStart: slot.UTC(), Status: st})
}

func (s *HTTPServer) requestBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body bookingv1.RequestBookingRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.svc.Bookings.RequestBooking(r.Context(), actor, models.BookingRequest{
		BarberID:      body.BarberID,
		ShopID:        body.ShopID,
		SlotStart:     body.SlotStart,
		ServiceIDs:    body.ServiceIDs,
		PaymentMethod: body.PaymentMethod,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *HTTPServer) getBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.svc.Bookings.GetBooking(r.Context(), actor, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) manageBooking(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Action  string               `json:"action"`
		Reason  string               `json:"reason"`
		Receipt *models.ReceiptInput `json:"receipt"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	b, err := s.svc.Bookings.ManageBooking(r.Context(), service.ManageCommand{
		ActorID:   actor,
		BookingID: id,
		Action:    models.Action(strings.ToLower(strings.TrimSpace(body.Action))),
		Reason:    body.Reason,
		Receipt:   body.Receipt,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) listCustomerBookings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bookings, err := s.svc.Bookings.ListCustomerBookings(r.Context(), actor, statuses)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (s *HTTPServer) listBarberBookings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	barberID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	statuses, err := parseStatuses(q.Get("status"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bookings, err := s.svc.Bookings.ListBarberBookings(r.Context(), actor, barberID, statuses, strings.TrimSpace(q.Get("date")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func nonNil(b []models.Booking) []models.Booking {
	if b == nil {
		return []models.Booking{}
	}
	return b
}

func (s *HTTPServer) getBarberStats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	barberID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	from, err := parseTime("from", q.Get("from"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := parseTime("to", q.Get("to"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stats, err := s.svc.Stats.GetBarberStats(r.Context(), actor, barberID, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func earningsPeriod(r *http.Request) (models.EarningsPeriod, error) {
	period, ok := models.ParseEarningsPeriod(r.URL.Query().Get("period"))
	if !ok {
		return "", fmt.Errorf("%w: period must be today, week, month or all", domain.ErrInvalidInput)
	}
	return period, nil
}

func (s *HTTPServer) listEarnings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	barberID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	period, err := earningsPeriod(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	earnings, err := s.svc.Stats.ListEarnings(r.Context(), actor, barberID, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earnings)
}

// exportEarnings saves the workbook under the export path and streams it back.
func (s *HTTPServer) exportEarnings(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	barberID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	period, err := earningsPeriod(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	path, _, err := s.svc.Stats.ExportEarnings(r.Context(), actor, barberID, period, s.svc.Exporter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("open export: %w", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("earnings download interrupted")
	}
}

func (s *HTTPServer) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	u := &models.User{FullName: body.FullName, Phone: body.Phone}
	if err := s.svc.Catalog.CreateUser(r.Context(), u); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *HTTPServer) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.svc.Catalog.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *HTTPServer) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var ob models.Onboarding
	if err := decodeJSON(r, &ob); err != nil {
		s.writeError(w, r, err)
		return
	}
	shop, err := s.svc.Catalog.CompleteOnboarding(r.Context(), actor, ob)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shop)
}

func (s *HTTPServer) getShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shop, err := s.svc.Catalog.GetShop(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *HTTPServer) setShopOpen(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Open *bool `json:"open"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Open == nil {
		s.writeError(w, r, fmt.Errorf("%w: open is required", domain.ErrInvalidInput))
		return
	}
	shop, err := s.svc.Catalog.SetShopOpen(r.Context(), actor, id, *body.Open)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (s *HTTPServer) listNearbyShops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseCoordinate("lat", q.Get("lat"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	long, err := parseCoordinate("long", q.Get("long"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shops, err := s.svc.Catalog.ListNearbyShops(r.Context(), lat, long)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if shops == nil {
		shops = []models.Shop{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"shops": shops})
}

func (s *HTTPServer) listServices(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	activeOnly := true
	if raw := r.URL.Query().Get("active_only"); raw != "" {
		if activeOnly, err = strconv.ParseBool(raw); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: active_only must be a boolean", domain.ErrInvalidInput))
			return
		}
	}
	services, err := s.svc.Catalog.ListServices(r.Context(), shopID, activeOnly)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if services == nil {
		services = []models.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) addService(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shopID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var svc models.Service
	if err := decodeJSON(r, &svc); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.svc.Catalog.AddService(r.Context(), actor, shopID, svc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) updateService(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var patch models.ServicePatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.svc.Catalog.UpdateService(r.Context(), actor, id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) deactivateService(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeactivateService(r.Context(), actor, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
