package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"barberbook/internal/calendar"
	"barberbook/internal/config"
	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService manages users, shops and their service menus.
type CatalogService struct {
	repo     domain.CatalogRepository
	eventBus domain.EventPublisher
	cfg      config.BookingConfig
	logger   *zerolog.Logger
}

func NewCatalogService(repo domain.CatalogRepository, eventBus domain.EventPublisher, cfg config.BookingConfig, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:     repo,
		eventBus: publisherOr(eventBus),
		cfg:      cfg,
		logger:   loggerOr(logger, "catalog"),
	}
}

func (s *CatalogService) CreateUser(ctx context.Context, u *models.User) error {
	u.FullName = strings.TrimSpace(u.FullName)
	if u.FullName == "" {
		return fmt.Errorf("%w: full name is required", domain.ErrInvalidInput)
	}
	// the barber role is granted by onboarding only
	u.Role = models.RoleCustomer
	return s.repo.CreateUser(ctx, u)
}

func (s *CatalogService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

func validateService(svc *models.Service) error {
	svc.Name = strings.TrimSpace(svc.Name)
	switch {
	case svc.Name == "":
		return fmt.Errorf("%w: service name is required", domain.ErrInvalidInput)
	case !svc.Price.IsPositive():
		return fmt.Errorf("%w: service %q must have a positive price", domain.ErrInvalidInput, svc.Name)
	case svc.DurationMinutes <= 0:
		return fmt.Errorf("%w: service %q must have a positive duration", domain.ErrInvalidInput, svc.Name)
	}
	return nil
}

// CompleteOnboarding turns the actor into a barber with a shop and an initial
// service menu. Missing working hours fall back to the configured defaults.
func (s *CatalogService) CompleteOnboarding(ctx context.Context, actorID int64, ob models.Onboarding) (*models.Shop, error) {
	ob.BarberID = actorID
	ob.Shop.Name = strings.TrimSpace(ob.Shop.Name)
	if ob.Shop.Name == "" {
		return nil, fmt.Errorf("%w: shop name is required", domain.ErrInvalidInput)
	}
	if math.Abs(ob.Shop.Latitude) > 90 || math.Abs(ob.Shop.Longitude) > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	if len(ob.Services) < s.cfg.MinOnboardingServices {
		return nil, fmt.Errorf("%w: at least %d services are required, got %d",
			domain.ErrInvalidInput, s.cfg.MinOnboardingServices, len(ob.Services))
	}
	for i := range ob.Services {
		if err := validateService(&ob.Services[i]); err != nil {
			return nil, err
		}
	}

	if ob.WorkStart == "" {
		ob.WorkStart = s.cfg.DefaultWorkStart
	}
	if ob.WorkEnd == "" {
		ob.WorkEnd = s.cfg.DefaultWorkEnd
	}
	if ob.SlotMinutes == 0 {
		ob.SlotMinutes = s.cfg.DefaultSlotMinutes
	}
	if ob.Timezone == "" {
		ob.Timezone = s.cfg.DefaultTimezone
	}
	layout := models.Barber{
		UserID:      actorID,
		WorkStart:   ob.WorkStart,
		WorkEnd:     ob.WorkEnd,
		SlotMinutes: ob.SlotMinutes,
		Timezone:    ob.Timezone,
	}
	if _, err := calendar.GridFor(&layout); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	shop, err := s.repo.CompleteOnboarding(ctx, &ob)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("barber_id", actorID).Int64("shop_id", shop.ID).Int("services", len(ob.Services)).Msg("barber onboarded")
	return shop, nil
}

func (s *CatalogService) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	return s.repo.GetShop(ctx, id)
}

func (s *CatalogService) ownedShop(ctx context.Context, actorID, shopID int64) (*models.Shop, error) {
	shop, err := s.repo.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	if shop.OwnerID != actorID {
		return nil, domain.ErrNotAuthorized
	}
	return shop, nil
}

// SetShopOpen gates new booking requests. Accepted bookings are unaffected.
func (s *CatalogService) SetShopOpen(ctx context.Context, actorID, shopID int64, open bool) (*models.Shop, error) {
	shop, err := s.ownedShop(ctx, actorID, shopID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetShopOpen(ctx, shopID, open); err != nil {
		return nil, err
	}
	shop.IsOpen = open

	if err := s.eventBus.PublishJSON(events.EventShopToggled, events.ShopEventPayload{
		ShopID:  shop.ID,
		OwnerID: shop.OwnerID,
		IsOpen:  open,
	}); err != nil {
		s.logger.Warn().Err(err).Int64("shop_id", shopID).Msg("failed to publish shop toggle")
	}
	return shop, nil
}

func (s *CatalogService) AddService(ctx context.Context, actorID, shopID int64, svc models.Service) (*models.Service, error) {
	if _, err := s.ownedShop(ctx, actorID, shopID); err != nil {
		return nil, err
	}
	if err := validateService(&svc); err != nil {
		return nil, err
	}
	svc.ShopID = shopID
	if err := s.repo.CreateService(ctx, &svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

// UpdateService edits the menu. Prices already snapshotted on bookings stay as booked.
func (s *CatalogService) UpdateService(ctx context.Context, actorID, serviceID int64, patch models.ServicePatch) (*models.Service, error) {
	current, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedShop(ctx, actorID, current.ShopID); err != nil {
		return nil, err
	}

	merged := *current
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Price != nil {
		merged.Price = *patch.Price
	}
	if patch.DurationMinutes != nil {
		merged.DurationMinutes = *patch.DurationMinutes
	}
	if err := validateService(&merged); err != nil {
		return nil, err
	}
	return s.repo.UpdateService(ctx, serviceID, patch)
}

func (s *CatalogService) DeactivateService(ctx context.Context, actorID, serviceID int64) error {
	current, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return err
	}
	if _, err := s.ownedShop(ctx, actorID, current.ShopID); err != nil {
		return err
	}
	return s.repo.DeactivateService(ctx, serviceID)
}

func (s *CatalogService) ListServices(ctx context.Context, shopID int64, activeOnly bool) ([]models.Service, error) {
	if _, err := s.repo.GetShop(ctx, shopID); err != nil {
		return nil, err
	}
	return s.repo.ListServices(ctx, shopID, activeOnly)
}

const earthRadiusMeters = 6371000.0

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// ListNearbyShops returns shops within the configured radius ordered by
// distance. When none are in range it falls back to the nearest few.
func (s *CatalogService) ListNearbyShops(ctx context.Context, lat, long float64) ([]models.Shop, error) {
	if math.Abs(lat) > 90 || math.Abs(long) > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", domain.ErrInvalidInput)
	}
	shops, err := s.repo.ListShops(ctx)
	if err != nil {
		return nil, err
	}
	for i := range shops {
		shops[i].DistanceMeters = haversine(lat, long, shops[i].Latitude, shops[i].Longitude)
	}
	sort.SliceStable(shops, func(i, j int) bool { return shops[i].DistanceMeters < shops[j].DistanceMeters })

	radius := s.cfg.NearbyRadiusKm * 1000
	inRange := 0
	for inRange < len(shops) && shops[inRange].DistanceMeters <= radius {
		inRange++
	}
	if inRange > 0 {
		return shops[:inRange], nil
	}
	if limit := s.cfg.NearbyLimit; limit > 0 && len(shops) > limit {
		shops = shops[:limit]
	}
	return shops, nil
}
