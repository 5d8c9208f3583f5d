package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"reliefboard/internal/apierror"
	"reliefboard/internal/kml"
	"reliefboard/internal/query"
)

// PlacemarkLoader is satisfied by *kml.Loader.
type PlacemarkLoader interface {
	Load(ctx context.Context) ([]kml.Placemark, error)
}

// MapService serves the river-bank placemarks from the configured KML
// source, cached for an hour.
type MapService struct {
	loader PlacemarkLoader
	cache  *query.Cache
	logger *zap.Logger
}

func NewMapService(loader PlacemarkLoader, cache *query.Cache, logger *zap.Logger) *MapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MapService{loader: loader, cache: cache, logger: logger}
}

// one retry is enough for a static document
var mapRetry = query.RetryPolicy{MaxRetries: 1, BaseDelay: query.DefaultRetryPolicy().BaseDelay}

func (s *MapService) Placemarks(ctx context.Context) ([]kml.Placemark, error) {
	opts := query.FetchOptions{StaleTime: mapStaleTime, Retry: &mapRetry}
	return query.Fetch(ctx, s.cache, placemarksKey, opts, func(ctx context.Context) ([]kml.Placemark, error) {
		pms, err := s.loader.Load(ctx)
		if err != nil {
			return nil, classifyMapError(err)
		}
		return pms, nil
	})
}

// classifyMapError keeps load failures (source unreachable) apart from parse
// failures (bad document).
func classifyMapError(err error) *apierror.Error {
	var pe *kml.ParseError
	if errors.As(err, &pe) {
		msg := kml.ErrInvalidXML.Error()
		if errors.Is(err, kml.ErrNoPlacemarks) {
			msg = kml.ErrNoPlacemarks.Error()
		}
		e := apierror.New(apierror.KindParse, msg, err)
		e.Resource = apierror.ResourceMap
		return e
	}
	var le *kml.LoadError
	if errors.As(err, &le) {
		if errors.Is(err, kml.ErrNotKML) {
			e := apierror.New(apierror.KindParse, kml.ErrNotKML.Error(), err)
			e.Resource = apierror.ResourceMap
			return e
		}
		e := apierror.Classify(le.Err, apierror.ResourceMap)
		if e.Kind == apierror.KindUnknown {
			e = apierror.New(apierror.KindServer, le.Error(), err)
			e.Resource = apierror.ResourceMap
		}
		return e
	}
	return apierror.Classify(err, apierror.ResourceMap)
}
