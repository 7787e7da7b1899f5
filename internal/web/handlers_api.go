//go:build !no_web

package web

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fp300-bridge/internal/coordinator"
	"fp300-bridge/internal/fp300"
	"fp300-bridge/internal/store"
	"fp300-bridge/internal/zcl"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.coord.Store().ListDevices()
	if err != nil {
		s.logger.Error("list devices", "err", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if devices == nil {
		devices = []*store.Device{}
	}
	s.writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.pathIEEE(w, r)
	if !ok {
		return
	}
	dev, err := s.coord.Store().GetDevice(ieee)
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, dev)
}

type renameDeviceRequest struct {
	FriendlyName string `json:"friendly_name"`
}

func (s *Server) handleAPIRenameDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.pathIEEE(w, r)
	if !ok {
		return
	}
	var req renameDeviceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	dev, err := s.coord.RenameDevice(ieee, strings.TrimSpace(req.FriendlyName))
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "friendly_name": dev.FriendlyName})
}

func (s *Server) handleAPIDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.pathIEEE(w, r)
	if !ok {
		return
	}
	if err := s.coord.RemoveDevice(ieee); err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// entityView is one FP300 entity with its current display value.
type entityView struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Category string   `json:"category,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Writable bool     `json:"writable"`
	Options  []string `json:"options,omitempty"`
	Value    any      `json:"value"`
}

func (s *Server) handleAPIListEntities(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.pathIEEE(w, r)
	if !ok {
		return
	}
	dev, err := s.coord.Store().GetDevice(ieee)
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}

	views := []entityView{}
	if fp300.IsFP300(dev.Model) {
		for _, e := range fp300.Entities() {
			v := entityView{
				Key:      e.Key,
				Name:     e.Name,
				Kind:     string(e.Kind),
				Category: e.Category,
				Unit:     e.Unit,
				Writable: e.Writable(),
			}
			if e.Enum != nil {
				v.Options = e.Enum.Names()
			}
			if ep, err := s.coord.LookupEndpoint(ieee, e.Endpoint); err == nil {
				if raw, ok := ep.Get(e.ClusterID, e.AttrID); ok {
					v.Value = e.Display(raw)
				}
			}
			views = append(views, v)
		}
	}
	s.writeJSON(w, http.StatusOK, views)
}

type setEntityRequest struct {
	Value any `json:"value"`
}

func (s *Server) handleAPISetEntity(w http.ResponseWriter, r *http.Request) {
	ieee, ok := s.pathIEEE(w, r)
	if !ok {
		return
	}
	dev, err := s.coord.Store().GetDevice(ieee)
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return
	}
	e, found := fp300.FindEntity(r.PathValue("key"))
	if !found || !fp300.IsFP300(dev.Model) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "entity not found"})
		return
	}
	if !e.Writable() {
		s.writeError(w, fmt.Errorf("%s: %w", e.Key, coordinator.ErrReadOnly), http.StatusBadGateway)
		return
	}

	var req setEntityRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	raw, err := e.Raw(req.Value)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err), http.StatusBadGateway)
		return
	}

	err = s.coord.WriteAttribute(r.Context(), ieee, e.Endpoint, e.ClusterID, zcl.AttrKey(e.AttrID), raw)
	if err != nil {
		s.writeError(w, err, http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIGetEndpoint(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.pathEndpoint(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ieee":     ep.IEEE,
		"endpoint": ep.ID,
		"quirk":    ep.Quirk() != nil,
		"clusters": s.coord.NamedSnapshot(ep),
	})
}

// detectionRangeView is the decoded detection range of an endpoint.
type detectionRangeView struct {
	Prefix uint16          `json:"prefix"`
	Bands  map[string]bool `json:"bands"`
	Raw    string          `json:"raw"`
}

func newDetectionRangeView(ep *coordinator.Endpoint) detectionRangeView {
	d := fp300.FromAttributes(ep.ClusterSnapshot(fp300.DetectionRangeClusterID))
	v := detectionRangeView{
		Prefix: d.Prefix,
		Bands:  make(map[string]bool, fp300.BandCount),
		Raw:    hex.EncodeToString(d.Encode()),
	}
	for i, b := range fp300.Bands {
		v.Bands[b.Name] = d.Bands[i]
	}
	return v
}

func (s *Server) handleAPIGetDetectionRange(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.pathEndpoint(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, newDetectionRangeView(ep))
}

// handleAPISetDetectionRange applies a partial band map such as
// {"range_2_3m": false, "detection_range_5_6m": true}. Bands left out keep
// their current state.
func (s *Server) handleAPISetDetectionRange(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.pathEndpoint(w, r)
	if !ok {
		return
	}
	var req map[string]any
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no bands given"})
		return
	}

	values := make(map[string]any, len(req))
	for key, v := range req {
		name := strings.TrimPrefix(key, "detection_")
		if name != "prefix" && fp300.BandByName(name) < 0 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown band %q", key)})
			return
		}
		values[name] = v
	}

	err := s.coord.WriteAttributes(r.Context(), ep.IEEE, ep.ID, fp300.DetectionRangeClusterID, values)
	if err != nil {
		s.writeError(w, err, http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, newDetectionRangeView(ep))
}

type writeAttributesRequest struct {
	ClusterID  uint16         `json:"cluster_id"`
	Attributes map[string]any `json:"attributes"`
}

func (s *Server) handleAPIWriteAttributes(w http.ResponseWriter, r *http.Request) {
	ep, ok := s.pathEndpoint(w, r)
	if !ok {
		return
	}
	var req writeAttributesRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.Attributes) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "attributes must not be empty"})
		return
	}
	if len(req.Attributes) > 50 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "attributes limited to 50"})
		return
	}

	err := s.coord.WriteAttributes(r.Context(), ep.IEEE, ep.ID, req.ClusterID, req.Attributes)
	if err != nil {
		s.writeError(w, err, http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIListClusters(w http.ResponseWriter, r *http.Request) {
	clusters := s.coord.Registry().All()
	s.writeJSON(w, http.StatusOK, clusters)
}

// pathIEEE returns the normalized {ieee} path value, answering 400 when it
// does not parse.
func (s *Server) pathIEEE(w http.ResponseWriter, r *http.Request) (string, bool) {
	ieee, err := coordinator.NormalizeIEEE(r.PathValue("ieee"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ieee address"})
		return "", false
	}
	return ieee, true
}

func (s *Server) pathEndpoint(w http.ResponseWriter, r *http.Request) (*coordinator.Endpoint, bool) {
	ieee, ok := s.pathIEEE(w, r)
	if !ok {
		return nil, false
	}
	n, err := strconv.ParseUint(r.PathValue("ep"), 10, 8)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid endpoint"})
		return nil, false
	}
	ep, err := s.coord.LookupEndpoint(ieee, uint8(n))
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError)
		return nil, false
	}
	return ep, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// writeError maps coordinator errors to a status. Errors that match no
// known class are answered with fallback and logged.
func (s *Server) writeError(w http.ResponseWriter, err error, fallback int) {
	status := errorStatus(err, fallback)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("api request failed", "err", err, "status", status)
		msg = http.StatusText(status)
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func errorStatus(err error, fallback int) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, coordinator.ErrUnknownEndpoint):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrUnknownAttribute),
		errors.Is(err, coordinator.ErrReadOnly),
		errors.Is(err, coordinator.ErrInvalidValue),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return fallback
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}
