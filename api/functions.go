// Package api is the client for the backend's function and point endpoints.
// Every call goes through the gateway, so the session cookie is sent and
// a 401 signs the session out like anywhere else.
package api

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/byuoitav/functions"
	"github.com/byuoitav/functions/gateway"
	"github.com/google/uuid"
)

const functionsPath = "/api/v1/functions"

// NewFunction is the payload for creating a function
type NewFunction struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Points []functions.Point `json:"points"`
}

type update struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type newPoint struct {
	XVal float64 `json:"xVal"`
	YVal float64 `json:"yVal"`
}

// Client represents the functions API of one backend
type Client struct {
	gateway *gateway.Client
}

// NewClient returns a Client sending its requests through gw
func NewClient(gw *gateway.Client) *Client {
	return &Client{gateway: gw}
}

// List returns the functions owned by the signed in user
func (c *Client) List(ctx context.Context) ([]functions.Function, error) {
	var fns []functions.Function
	if err := c.gateway.Get(ctx, functionsPath+"/my", &fns); err != nil {
		return nil, fmt.Errorf("unable to list functions: %w", err)
	}

	return fns, nil
}

// Get returns the function with the given id, points included
func (c *Client) Get(ctx context.Context, id uuid.UUID) (functions.Function, error) {
	var fn functions.Function
	if err := c.gateway.Get(ctx, functionPath(id), &fn); err != nil {
		return functions.Function{}, fmt.Errorf("unable to get function %s: %w", id, err)
	}

	return fn, nil
}

// Create creates a function with all of its points in one request
func (c *Client) Create(ctx context.Context, nf NewFunction) (functions.Function, error) {
	nf.Name = strings.TrimSpace(nf.Name)
	if nf.Name == "" {
		return functions.Function{}, gateway.Validation("function name must not be empty")
	}

	if nf.Type == "" {
		nf.Type = functions.TypeArray
	}

	for i, p := range nf.Points {
		if !finite(p.X) || !finite(p.Y) {
			return functions.Function{}, gateway.Validation(fmt.Sprintf("point %d is not a finite number", i+1))
		}
	}

	if nf.Points == nil {
		nf.Points = []functions.Point{}
	}

	var fn functions.Function
	if err := c.gateway.Post(ctx, functionsPath, nf, &fn); err != nil {
		return functions.Function{}, fmt.Errorf("unable to create function: %w", err)
	}

	return fn, nil
}

// Update renames a function and, when typ is not empty, changes its type
func (c *Client) Update(ctx context.Context, id uuid.UUID, name, typ string) (functions.Function, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return functions.Function{}, gateway.Validation("function name must not be empty")
	}

	var fn functions.Function
	if err := c.gateway.Put(ctx, functionPath(id), update{Name: name, Type: typ}, &fn); err != nil {
		return functions.Function{}, fmt.Errorf("unable to update function %s: %w", id, err)
	}

	return fn, nil
}

// Delete deletes a function and its points
func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.gateway.Delete(ctx, functionPath(id)); err != nil {
		return fmt.Errorf("unable to delete function %s: %w", id, err)
	}

	return nil
}

// AddPoint appends a point to a function and returns it with its server id
func (c *Client) AddPoint(ctx context.Context, id uuid.UUID, x, y float64) (functions.Point, error) {
	if !finite(x) || !finite(y) {
		return functions.Point{}, gateway.Validation("x and y must be finite numbers")
	}

	var p functions.Point
	if err := c.gateway.Post(ctx, functionPath(id)+"/points", newPoint{XVal: x, YVal: y}, &p); err != nil {
		return functions.Point{}, fmt.Errorf("unable to add point: %w", err)
	}

	return p, nil
}

// DeletePoint deletes one point of a function. ref is the point's id or, for
// points the backend sent without one, its index in the same snapshot (see
// functions.Function.PointRef).
func (c *Client) DeletePoint(ctx context.Context, id uuid.UUID, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return gateway.Validation("a point reference is required")
	}

	if err := c.gateway.Delete(ctx, functionPath(id)+"/points/"+url.PathEscape(ref)); err != nil {
		return fmt.Errorf("unable to delete point %s: %w", ref, err)
	}

	return nil
}

func functionPath(id uuid.UUID) string {
	return functionsPath + "/" + id.String()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
