package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/beacon-proximity/internal/api/respond"
	"github.com/albapepper/beacon-proximity/internal/proximity"
)

// maxBatchBytes bounds a sightings request body.
const maxBatchBytes = 1 << 20

// SightingsRequest is one scan cycle's batch.
type SightingsRequest struct {
	Sightings []proximity.RawSighting `json:"sightings"`
}

// Validate rejects a batch containing a sighting without a proximity tier.
func (r SightingsRequest) Validate() error {
	for i, s := range r.Sightings {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sightings[%d]: %w", i, err)
		}
	}
	return nil
}

// TierMembers lists the devices in one tier.
type TierMembers struct {
	Tier    proximity.Tier `json:"tier"`
	Devices []string       `json:"devices"`
}

// PostSightings runs one scan cycle.
// @Summary Deliver a scan cycle
// @Description Classifies the batch, triggers events for new tier entries, and refreshes aged records.
// @Tags proximity
// @Accept json
// @Produce json
// @Param batch body SightingsRequest true "Ranged beacons"
// @Success 202 {object} proximity.CycleResult
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/sightings [post]
func (h *Handler) PostSightings(w http.ResponseWriter, r *http.Request) {
	var req SightingsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err := dec.Decode(&req); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BATCH",
			"Request body is not a valid sightings batch", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BATCH",
			"Request body is not a valid sightings batch", err.Error())
		return
	}

	result := h.engine.DeliverSightings(r.Context(), req.Sightings)
	respond.WriteJSONObject(w, http.StatusAccepted, result)
}

// GetBeacons returns every tier's members.
// @Summary Tier membership
// @Description Devices currently assigned to each proximity tier, in first-seen order.
// @Tags proximity
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/beacons [get]
func (h *Handler) GetBeacons(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]string, len(proximity.Tiers))
	for _, t := range proximity.Tiers {
		out[t.String()] = nonNil(h.engine.Members(t))
	}
	respond.WriteJSONObject(w, http.StatusOK, out)
}

// GetTier returns one tier's members.
// @Summary Tier members
// @Tags proximity
// @Produce json
// @Param tier path string true "immediate, near, far, or unknown"
// @Success 200 {object} TierMembers
// @Failure 400 {object} respond.ErrorResponse
// @Router /api/v1/beacons/{tier} [get]
func (h *Handler) GetTier(w http.ResponseWriter, r *http.Request) {
	tier, err := proximity.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_TIER",
			"Tier must be immediate, near, far, or unknown", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, TierMembers{
		Tier:    tier,
		Devices: nonNil(h.engine.Members(tier)),
	})
}

// GetClosest returns the last cycle's closest beacon.
// @Summary Closest beacon
// @Tags proximity
// @Produce json
// @Success 200 {object} proximity.Sighting
// @Failure 404 {object} respond.ErrorResponse
// @Router /api/v1/beacons/closest [get]
func (h *Handler) GetClosest(w http.ResponseWriter, r *http.Request) {
	s, ok := h.snapshot.Closest()
	if !ok {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No beacon has been sighted yet")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, s)
}

// GetDetected returns the last cycle's resolved sightings.
// @Summary Detected beacons
// @Tags proximity
// @Produce json
// @Success 200 {array} proximity.Sighting
// @Router /api/v1/beacons/detected [get]
func (h *Handler) GetDetected(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.snapshot.Detected())
}

// GetTriggers returns the trigger cache.
// @Summary Trigger records
// @Description Last acknowledged proximity event per (tier, device).
// @Tags proximity
// @Produce json
// @Success 200 {array} proximity.Record
// @Router /api/v1/triggers [get]
func (h *Handler) GetTriggers(w http.ResponseWriter, r *http.Request) {
	records := h.engine.Records()
	if records == nil {
		records = []proximity.Record{}
	}
	respond.WriteJSONObject(w, http.StatusOK, records)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
