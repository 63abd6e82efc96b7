package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/accessory"
	"github.com/dokzlo13/sensehatd/internal/panel"
	"github.com/dokzlo13/sensehatd/internal/sensors"
)

// Characteristic names accepted by PUT /light/{characteristic}
const (
	CharOn         = "on"
	CharBrightness = "brightness"
	CharSaturation = "saturation"
	CharHue        = "hue"
	CharBlink      = "blink"
)

var errUnknownCharacteristic = errors.New("unknown characteristic")

type valueRequest struct {
	Value json.RawMessage `json:"value"`
}

type pixelRequest struct {
	X          *int    `json:"x"`
	Y          *int    `json:"y"`
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Brightness float64 `json:"brightness"`
}

type sensorsResponse struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure"`
	UpdatedAt   string  `json:"updated_at"`
}

func (s *Server) handleGetLight(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.light.Status())
}

func (s *Server) handleSetCharacteristic(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("characteristic")

	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("body must be {\"value\": ...}"))
		return
	}

	err := s.setCharacteristic(name, req.Value)
	if errors.Is(err, errUnknownCharacteristic) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("light", s.light.Name()).Str("characteristic", name).Msg("Characteristic write failed")
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, s.light.Status())
}

func (s *Server) setCharacteristic(name string, raw json.RawMessage) error {
	switch name {
	case CharOn, CharBlink:
		on, err := parseBool(raw)
		if err != nil {
			return err
		}
		if name == CharOn {
			return s.light.SetPower(on)
		}
		return s.light.SetBlink(on)
	case CharBrightness, CharSaturation, CharHue:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s must be a number", panel.ErrInvalidColorValue, name)
		}
		switch name {
		case CharBrightness:
			return s.light.SetBrightness(v)
		case CharSaturation:
			return s.light.SetSaturation(v)
		default:
			return s.light.SetHue(v)
		}
	}
	return fmt.Errorf("%w: %q", errUnknownCharacteristic, name)
}

func (s *Server) handleSetPixel(w http.ResponseWriter, r *http.Request) {
	var req pixelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid pixel request: %w", err))
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: x and y are required", panel.ErrInvalidCoordinate))
		return
	}

	if err := s.light.SetPixel(*req.X, *req.Y, req.Hue, req.Saturation, req.Brightness); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if s.frame == nil {
		writeError(w, http.StatusNotFound, errors.New("frame readback not available"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": s.frame().Hex()})
}

func (s *Server) handleGetSensors(w http.ResponseWriter, r *http.Request) {
	if s.sensors == nil {
		writeError(w, http.StatusNotFound, errors.New("sensors are disabled"))
		return
	}

	reading, err := s.sensors.Reading(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeJSON(w, http.StatusOK, sensorsResponse{
		Temperature: reading.Temperature,
		Humidity:    reading.Humidity,
		Pressure:    reading.Pressure,
		UpdatedAt:   reading.At.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// parseBool accepts true/false and the 1/0 that bridges commonly send.
func parseBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return false, fmt.Errorf("%w: expected boolean, got %s", panel.ErrInvalidColorValue, string(raw))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, panel.ErrInvalidCoordinate), errors.Is(err, panel.ErrInvalidColorValue):
		return http.StatusBadRequest
	case errors.Is(err, panel.ErrPoweredOff), errors.Is(err, accessory.ErrBlinkUnsupported):
		return http.StatusConflict
	case errors.Is(err, panel.ErrSinkUnavailable), errors.Is(err, panel.ErrClosed), errors.Is(err, sensors.ErrNoReading):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
