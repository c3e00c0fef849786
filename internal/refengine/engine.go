package refengine

import (
	"net/http"

	"github.com/vk/oceanbaselines/internal/acquire"
	"github.com/vk/oceanbaselines/internal/ocean"
)

// Options configure the reference engines.
type Options struct {
	// ForcingURL is the base URL raw forcing data is fetched from.
	ForcingURL string
	HTTPClient *http.Client
	Retry      acquire.Policy
}

// New binds every collaborator to the reference implementation.
func New(opts Options) ocean.Engines {
	if opts.Retry == (acquire.Policy{}) {
		opts.Retry = acquire.DefaultPolicy()
	}
	return ocean.Engines{
		Grid:       GridBuilder{},
		VGrid:      VerticalGridBuilder{},
		Bathymetry: BathymetryEngine{},
		Forcing:    NewForcingEngine(opts.ForcingURL, acquire.NewClient(opts.HTTPClient, opts.Retry)),
	}
}
