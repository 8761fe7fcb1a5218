package net

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"strconv"

	"github.com/gorilla/mux"

	bsci "github.com/OEOTYAN/BedrockServerClientInterface"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/geo"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/ids"
	"github.com/OEOTYAN/BedrockServerClientInterface/internal/telemetry"
)

// ShapeRequest is the JSON body of POST /shapes. Kind selects which of the
// remaining fields apply.
type ShapeRequest struct {
	Kind      string        `json:"kind"`
	Dimension geo.Dimension `json:"dimension"`
	Color     geo.Color     `json:"color"`
	Thickness float32       `json:"thickness,omitempty"`

	Pos    *geo.Vec3  `json:"pos,omitempty"`
	Begin  *geo.Vec3  `json:"begin,omitempty"`
	End    *geo.Vec3  `json:"end,omitempty"`
	Points []geo.Vec3 `json:"points,omitempty"`
	Bounds *geo.AABB  `json:"bounds,omitempty"`
	Normal *geo.Vec3  `json:"normal,omitempty"`
	Top    *geo.Vec3  `json:"top,omitempty"`
	Bottom *geo.Vec3  `json:"bottom,omitempty"`
	Radius float32    `json:"radius,omitempty"`
	Text   string     `json:"text,omitempty"`
	Scale  *float32   `json:"scale,omitempty"`

	HeadLength *float32 `json:"headLength,omitempty"`
	HeadRadius *float32 `json:"headRadius,omitempty"`
}

func vecOrZero(v *geo.Vec3) geo.Vec3 {
	if v == nil {
		return geo.Vec3{}
	}
	return *v
}

// Shape converts the request into a draw call.
func (r ShapeRequest) Shape() (bsci.Shape, error) {
	switch r.Kind {
	case "point":
		return bsci.Point{Dim: r.Dimension, Pos: vecOrZero(r.Pos), Color: r.Color, Radius: r.Radius}, nil
	case "line":
		return bsci.Line{Dim: r.Dimension, Begin: vecOrZero(r.Begin), End: vecOrZero(r.End), Color: r.Color, Thickness: r.Thickness}, nil
	case "polyline":
		return bsci.Polyline{Dim: r.Dimension, Points: r.Points, Color: r.Color, Thickness: r.Thickness}, nil
	case "box":
		if r.Bounds == nil {
			return nil, fmt.Errorf("box requires bounds")
		}
		return bsci.Box{Dim: r.Dimension, Bounds: geo.Box(r.Bounds.Min, r.Bounds.Max), Color: r.Color, Thickness: r.Thickness}, nil
	case "circle":
		normal := geo.Up
		if r.Normal != nil {
			normal = *r.Normal
		}
		return bsci.Circle{Dim: r.Dimension, Center: vecOrZero(r.Pos), Normal: normal, Radius: r.Radius, Color: r.Color, Thickness: r.Thickness}, nil
	case "cylinder":
		return bsci.Cylinder{Dim: r.Dimension, Top: vecOrZero(r.Top), Bottom: vecOrZero(r.Bottom), Radius: r.Radius, Color: r.Color, Thickness: r.Thickness}, nil
	case "sphere":
		return bsci.Sphere{Dim: r.Dimension, Center: vecOrZero(r.Pos), Radius: r.Radius, Color: r.Color, Thickness: r.Thickness}, nil
	case "arrow":
		return bsci.Arrow{
			Dim:        r.Dimension,
			Begin:      vecOrZero(r.Begin),
			End:        vecOrZero(r.End),
			Color:      r.Color,
			Thickness:  r.Thickness,
			HeadLength: r.HeadLength,
			HeadRadius: r.HeadRadius,
		}, nil
	case "text":
		return bsci.Text{Dim: r.Dimension, Pos: vecOrZero(r.Pos), Text: r.Text, Color: r.Color, Scale: r.Scale}, nil
	default:
		return nil, fmt.Errorf("unknown shape kind %q", r.Kind)
	}
}

// handleResponse renders ids as strings; message handles sit near the top
// of the uint64 range and do not survive a float64 round trip.
type handleResponse struct {
	ID uint64 `json:"id,string"`
}

type mergeRequest struct {
	IDs []string `json:"ids"`
}

type shiftRequest struct {
	Delta geo.Vec3 `json:"delta"`
}

func registerShapeRoutes(router *mux.Router, group *bsci.Group, logger telemetry.Logger) {
	writeJSON := func(w nethttp.ResponseWriter, code int, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Printf("failed to encode response: %v", err)
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write(data)
	}

	handleVar := func(r *nethttp.Request) (ids.GeoId, bool) {
		raw, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			return ids.Invalid, false
		}
		id := ids.GeoId(raw)
		return id, id.Valid()
	}

	router.HandleFunc("/shapes", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req ShapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		shape, err := req.Shape()
		if err != nil {
			httpError(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		id := group.Draw(r.Context(), shape)
		if !id.Valid() {
			httpError(w, "degenerate shape", nethttp.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, nethttp.StatusCreated, handleResponse{ID: uint64(id)})
	}).Methods(nethttp.MethodPost)

	router.HandleFunc("/shapes/merge", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req mergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		handles := make([]ids.GeoId, 0, len(req.IDs))
		for _, raw := range req.IDs {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				httpError(w, "invalid id", nethttp.StatusBadRequest)
				return
			}
			handles = append(handles, ids.GeoId(id))
		}
		merged := group.Merge(r.Context(), handles)
		if !merged.Valid() {
			httpError(w, "nothing to merge", nethttp.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, nethttp.StatusOK, handleResponse{ID: uint64(merged)})
	}).Methods(nethttp.MethodPost)

	router.HandleFunc("/shapes/{id:[0-9]+}/shift", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := handleVar(r)
		if !ok {
			httpError(w, "invalid id", nethttp.StatusBadRequest)
			return
		}
		var req shiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		if !group.Shift(r.Context(), id, req.Delta) {
			httpError(w, "unknown shape", nethttp.StatusNotFound)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}).Methods(nethttp.MethodPost)

	router.HandleFunc("/shapes/{id:[0-9]+}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		id, ok := handleVar(r)
		if !ok {
			httpError(w, "invalid id", nethttp.StatusBadRequest)
			return
		}
		if !group.Remove(r.Context(), id) {
			httpError(w, "unknown shape", nethttp.StatusNotFound)
			return
		}
		w.WriteHeader(nethttp.StatusNoContent)
	}).Methods(nethttp.MethodDelete)
}
