package internal

import (
	"sjsage522/consoledealworker/internal/storage"
	"sjsage522/consoledealworker/internal/store"
	"sjsage522/consoledealworker/internal/vision"
	"sjsage522/consoledealworker/services/cache"
	"sjsage522/consoledealworker/services/publisher"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *store.Store
	Sink      storage.ListingSink
	// Image is already wrapped in vision.FailOpen; nil disables image checks
	Image vision.Classifier
}
