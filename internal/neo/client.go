// Package neo fetches labeled near-Earth-object records from the NASA NeoWs
// catalog. It is the data-fetch collaborator for the training pipeline: its
// only obligation to the core is to hand over well-formed labeled records.
package neo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"neo-guard/internal/features"
)

// Observation pairs a catalog object id with its labeled training record.
type Observation struct {
	NeoID string `json:"neo_id"`
	features.LabeledRecord
}

// Recorder receives fetch telemetry. A nil recorder disables tracking.
type Recorder interface {
	CatalogPageInc()
	ObservationsAdd(n int)
}

// Client talks to the NeoWs browse endpoint.
type Client struct {
	rest     *resty.Client
	base     string
	key      string
	recorder Recorder
}

// NewClient builds a catalog client. key falls back to the public demo key
// when empty.
func NewClient(base, key string, timeout time.Duration, recorder Recorder) *Client {
	r := resty.New().SetRetryCount(3)
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	if key == "" {
		key = "DEMO_KEY"
	}
	return &Client{rest: r, base: base, key: key, recorder: recorder}
}

type browsePage struct {
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
	NearEarthObjects []catalogObject `json:"near_earth_objects"`
}

// The catalog serializes velocity and distance as strings.
type catalogObject struct {
	ID                string  `json:"id"`
	AbsoluteMagnitude float64 `json:"absolute_magnitude_h"`
	EstimatedDiameter struct {
		Kilometers struct {
			Min float64 `json:"estimated_diameter_min"`
		} `json:"kilometers"`
	} `json:"estimated_diameter"`
	Hazardous       bool `json:"is_potentially_hazardous_asteroid"`
	CloseApproaches []struct {
		RelativeVelocity struct {
			KmPerHour string `json:"kilometers_per_hour"`
		} `json:"relative_velocity"`
		MissDistance struct {
			Kilometers string `json:"kilometers"`
		} `json:"miss_distance"`
	} `json:"close_approach_data"`
}

// FetchLabeled walks the browse endpoint for up to maxPages pages,
// following the catalog's next links, and maps each object to a labeled
// observation. Objects without close-approach data are dropped before they
// ever reach feature derivation. A mid-stream failure ends the walk and
// returns what was collected so far; the trainer decides whether the
// partial set is usable.
func (c *Client) FetchLabeled(ctx context.Context, maxPages int) ([]Observation, error) {
	url := fmt.Sprintf("%s/neo/rest/v1/neo/browse?api_key=%s", c.base, c.key)
	var out []Observation

	for page := 0; page < maxPages; page++ {
		var body browsePage
		resp, err := c.rest.R().SetContext(ctx).SetResult(&body).Get(url)
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("fetch catalog page 1: %w", err)
			}
			log.Warn().Err(err).Int("page", page+1).Msg("catalog fetch stopped early")
			break
		}
		if resp.IsError() {
			if page == 0 {
				return nil, fmt.Errorf("fetch catalog page 1: status %s", resp.Status())
			}
			log.Warn().Str("status", resp.Status()).Int("page", page+1).Msg("catalog fetch stopped early")
			break
		}

		added := 0
		for _, obj := range body.NearEarthObjects {
			obs, ok := obj.observation()
			if !ok {
				continue
			}
			out = append(out, obs)
			added++
		}
		if c.recorder != nil {
			c.recorder.CatalogPageInc()
			c.recorder.ObservationsAdd(added)
		}

		next := body.Links.Next
		if next == "" {
			break
		}
		url = strings.Replace(next, "http://", "https://", 1)
	}

	log.Info().Int("observations", len(out)).Msg("catalog fetch complete")
	return out, nil
}

func (o catalogObject) observation() (Observation, bool) {
	if len(o.CloseApproaches) == 0 {
		return Observation{}, false
	}
	approach := o.CloseApproaches[0]

	vel, err := strconv.ParseFloat(approach.RelativeVelocity.KmPerHour, 64)
	if err != nil {
		log.Warn().Str("neo_id", o.ID).Str("value", approach.RelativeVelocity.KmPerHour).Msg("unparseable relative velocity, dropping object")
		return Observation{}, false
	}
	dist, err := strconv.ParseFloat(approach.MissDistance.Kilometers, 64)
	if err != nil {
		log.Warn().Str("neo_id", o.ID).Str("value", approach.MissDistance.Kilometers).Msg("unparseable miss distance, dropping object")
		return Observation{}, false
	}

	return Observation{
		NeoID: o.ID,
		LabeledRecord: features.LabeledRecord{
			RawObservation: features.RawObservation{
				EstDiameterMin:    o.EstimatedDiameter.Kilometers.Min,
				RelativeVelocity:  vel,
				MissDistance:      dist,
				AbsoluteMagnitude: o.AbsoluteMagnitude,
			},
			IsHazardous: o.Hazardous,
		},
	}, true
}
