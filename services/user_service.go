package services

import (
	"context"
	"errors"
	"strings"

	"astra/errs"
	"astra/logger"
	"astra/models"
	"astra/store"
)

type userStore interface {
	FindUserByBirthDetails(ctx context.Context, name, birthDate, birthTime, location string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User, language string) error
}

// UserService は出生情報からユーザーを特定し、なければ作成する
type UserService struct {
	store           userStore
	geocoder        Geocoder
	astro           *AstroService
	defaultTimezone string
}

func NewUserService(store userStore, geocoder Geocoder, astro *AstroService, defaultTimezone string) *UserService {
	return &UserService{
		store:           store,
		geocoder:        geocoder,
		astro:           astro,
		defaultTimezone: defaultTimezone,
	}
}

type birthKey struct {
	name, location, date, clock string
}

func normalizeBirth(b models.BirthDetails) (birthKey, error) {
	k := birthKey{
		name:     spaceRun.ReplaceAllString(strings.TrimSpace(b.Name), " "),
		location: spaceRun.ReplaceAllString(strings.TrimSpace(b.Location), " "),
	}
	if k.name == "" || k.location == "" {
		return k, errs.ErrIncompleteRequest
	}
	var err error
	if k.date, err = NormalizeBirthDate(b.BirthDate); err != nil {
		return k, err
	}
	if k.clock, err = NormalizeBirthTime(b.BirthTime); err != nil {
		return k, err
	}
	return k, nil
}

// Find は既存ユーザーだけを探す (作成はしない)
func (us *UserService) Find(ctx context.Context, b models.BirthDetails) (*models.User, error) {
	k, err := normalizeBirth(b)
	if err != nil {
		return nil, err
	}
	return us.store.FindUserByBirthDetails(ctx, k.name, k.date, k.clock, k.location)
}

// Resolve は同じ出生情報なら常に同じユーザーを返す
// 新規作成時だけ座標を求めてホロスコープを計算する
func (us *UserService) Resolve(ctx context.Context, b models.BirthDetails, language string) (*models.User, error) {
	k, err := normalizeBirth(b)
	if err != nil {
		return nil, err
	}
	name, location, date, clock := k.name, k.location, k.date, k.clock

	u, err := us.store.FindUserByBirthDetails(ctx, name, date, clock, location)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, errs.ErrUserNotFound) {
		return nil, err
	}

	loc, tzName, err := LoadTimezone(b.Timezone, us.defaultTimezone)
	if err != nil {
		return nil, err
	}
	lat, lon, err := us.coordinates(ctx, b, location)
	if err != nil {
		return nil, err
	}
	at, err := BirthInstant(date, clock, loc)
	if err != nil {
		return nil, err
	}

	u = &models.User{
		Name:          name,
		BirthDate:     date,
		BirthTime:     clock,
		BirthLocation: location,
		Latitude:      lat,
		Longitude:     lon,
		Timezone:      tzName,
		NatalChart:    us.astro.NatalChart(at, lat, lon),
	}
	err = us.store.CreateUser(ctx, u, language)
	if errors.Is(err, store.ErrUserExists) {
		// 同時に作成された行を使う
		return us.store.FindUserByBirthDetails(ctx, name, date, clock, location)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("user created", "user_id", u.ID, "ascendant", u.NatalChart.Ascendant.Sign)
	return u, nil
}

func (us *UserService) coordinates(ctx context.Context, b models.BirthDetails, location string) (float64, float64, error) {
	if b.Latitude != nil && b.Longitude != nil {
		lat, lon := *b.Latitude, *b.Longitude
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return 0, 0, errs.ErrInvalidCoordinates
		}
		return lat, lon, nil
	}
	return us.geocoder.Geocode(ctx, location)
}
