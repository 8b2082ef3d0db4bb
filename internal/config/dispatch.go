package config

import "time"

// DispatchConfig tunes segmentation previews and the delivery simulator.
type DispatchConfig struct {
	// SuccessRate is the probability that a simulated delivery is SENT.
	SuccessRate float64 `envconfig:"SUCCESS_RATE" default:"0.9" validate:"gte=0,lte=1"`

	// PreviewSampleSize caps the matched customers returned by a preview.
	PreviewSampleSize int `envconfig:"PREVIEW_SAMPLE_SIZE" default:"50" validate:"min=1,max=1000"`
}

// SuggestConfig tunes the campaign copy suggestion endpoints.
type SuggestConfig struct {
	CacheCapacity int           `envconfig:"CACHE_CAPACITY" default:"1000" validate:"min=1"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"10m" validate:"min=1s"`

	// RatePerMinute and Burst throttle calls into the text generator.
	RatePerMinute int `envconfig:"RATE_PER_MINUTE" default:"30" validate:"min=1"`
	Burst         int `envconfig:"BURST" default:"5" validate:"min=1"`
}
