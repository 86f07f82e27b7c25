package ops

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"graf/internal/db"
	"graf/internal/model"
	"graf/internal/validate"
)

const (
	msgBadA       = "Non-valid node a number"
	msgBadB       = "Non-valid node b number"
	msgBadEdgeID  = "Non-valid edge number"
	msgSameNode   = "The two nodes must be different"
	msgNoA        = "a node does not exist"
	msgNoB        = "b node does not exist"
	msgEdgeExists = "Edge already exists"
	msgNoEdge     = "Edge does not exist"
	msgNoEdgeKey  = "Missing both id and a and b, one way to identify the edge is needed to delete it"
)

// endpoints validates a and b, in that order, and returns them canonicalized.
// A non-OK result is returned when either is invalid or both are equal.
func (d *Dispatcher) endpoints(req Request) (int64, int64, Result) {
	if !d.validID(req["a"]) {
		return 0, 0, failure(StatusInvalidField, msgBadA)
	}
	if !d.validID(req["b"]) {
		return 0, 0, failure(StatusInvalidField, msgBadB)
	}
	a, b := model.Canonical(validate.Int(req["a"]), validate.Int(req["b"]))
	if a == b {
		return 0, 0, failure(StatusSameNode, msgSameNode)
	}
	return a, b, Result{Status: StatusOK}
}

func (d *Dispatcher) createEdge(ctx context.Context, s *db.Session, req Request) (Result, error) {
	if f, ok := req.firstMissing("a", "b"); ok {
		return missingField(f), nil
	}
	a, b, res := d.endpoints(req)
	if !res.OK() {
		return res, nil
	}

	for _, end := range []struct {
		id  int64
		msg string
	}{{a, msgNoA}, {b, msgNoB}} {
		exists, err := s.NodeExists(ctx, end.id)
		if err != nil {
			return Result{}, err
		}
		if !exists {
			res := failure(StatusNotFound, end.msg)
			res.Par = &Params{A: i64(a), B: i64(b)}
			return res, nil
		}
	}

	_, err := s.FindEdge(ctx, a, b)
	if err == nil {
		return failure(StatusDuplicate, msgEdgeExists), nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return Result{}, err
	}

	if err := s.InsertEdge(ctx, a, b); err != nil {
		return Result{}, err
	}
	e, err := s.FindEdge(ctx, a, b)
	if errors.Is(err, db.ErrNotFound) {
		return Result{}, fmt.Errorf("%w: edge %s missing after insert", errPostCondition, model.PairKey(a, b))
	}
	if err != nil {
		return Result{}, err
	}

	par := &Params{ID: i64(e.ID), A: i64(a), B: i64(b)}
	if err := s.WriteAudit(ctx, "create_edge", model.TargetEdge, strconv.FormatInt(e.ID, 10), par); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Par: par}, nil
}

func (d *Dispatcher) deleteEdge(ctx context.Context, s *db.Session, req Request) (Result, error) {
	var edge *model.Edge
	var par *Params

	if req.Has("id") {
		if !d.validID(req["id"]) {
			return failure(StatusInvalidField, msgBadEdgeID), nil
		}
		e, err := s.GetEdge(ctx, validate.Int(req["id"]))
		if errors.Is(err, db.ErrNotFound) {
			return failure(StatusNotFound, msgNoEdge), nil
		}
		if err != nil {
			return Result{}, err
		}
		edge = e
		par = &Params{ID: i64(e.ID)}
	} else {
		if !req.Has("a") || !req.Has("b") {
			return failure(StatusMissingField, msgNoEdgeKey), nil
		}
		a, b, res := d.endpoints(req)
		if !res.OK() {
			return res, nil
		}
		e, err := s.FindEdge(ctx, a, b)
		if errors.Is(err, db.ErrNotFound) {
			return failure(StatusNotFound, msgNoEdge), nil
		}
		if err != nil {
			return Result{}, err
		}
		edge = e
		par = &Params{ID: i64(e.ID), A: i64(a), B: i64(b)}
	}

	if err := s.DeleteEdge(ctx, edge.ID); err != nil {
		return Result{}, err
	}
	_, err := s.GetEdge(ctx, edge.ID)
	if err == nil {
		return Result{}, fmt.Errorf("%w: edge %d present after delete", errPostCondition, edge.ID)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return Result{}, err
	}

	audit := Params{ID: i64(edge.ID), A: i64(edge.A), B: i64(edge.B)}
	if err := s.WriteAudit(ctx, "delete_edge", model.TargetEdge, strconv.FormatInt(edge.ID, 10), audit); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Par: par}, nil
}
