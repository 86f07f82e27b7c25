package ops

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"graf/internal/db"
	"graf/internal/model"
	"graf/internal/validate"
)

const (
	msgBadX      = "x-coordinate not an integer or out of range"
	msgBadY      = "y-coordinate not an integer or out of range"
	msgBadYear   = "year not an integer or out of range"
	msgBadSex    = "Invalid sex"
	msgBadNodeID = "Non-valid node number"
	msgBadBand   = "Unknown id band"
	msgNoNode    = "node does not exist"
	msgNoEdits   = "Tried to edit a node but specified no fields to edit"
	msgNodeInUse = "Trying to delete a node with edges"
)

// Node and edge ids share the non-negative int64 range.
const maxIdentifier = math.MaxInt64

// errPostCondition marks a mutation whose effect could not be read back.
var errPostCondition = errors.New("post-condition failed")

func nodeTarget(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (d *Dispatcher) validID(v string) bool {
	return validate.BoundedInt(v, 0, maxIdentifier)
}

func (d *Dispatcher) validX(v string) bool {
	return validate.BoundedInt(v, d.bounds.MinX, d.bounds.MaxX)
}

func (d *Dispatcher) validY(v string) bool {
	return validate.BoundedInt(v, d.bounds.MinY, d.bounds.MaxY)
}

func (d *Dispatcher) validYear(v string) bool {
	return validate.BoundedInt(v, d.bounds.MinYear, d.bounds.MaxYear)
}

func (d *Dispatcher) createNode(ctx context.Context, s *db.Session, req Request) (Result, error) {
	if f, ok := req.firstMissing("name", "x", "y", "year", "sex"); ok {
		return missingField(f), nil
	}
	if !d.validX(req["x"]) {
		return failure(StatusInvalidField, msgBadX), nil
	}
	if !d.validY(req["y"]) {
		return failure(StatusInvalidField, msgBadY), nil
	}
	if !d.validYear(req["year"]) {
		return failure(StatusInvalidField, msgBadYear), nil
	}
	if !validate.Sex(req["sex"]) {
		return failure(StatusInvalidField, msgBadSex), nil
	}
	band, ok := d.bands.Get(req["band"])
	if !ok {
		return failure(StatusInvalidField, msgBadBand), nil
	}

	id, err := AllocateNodeID(ctx, s, band)
	if err != nil {
		return Result{}, err
	}

	node := model.Node{
		ID:   id,
		Name: validate.SanitizeName(req["name"]),
		X:    validate.Int(req["x"]),
		Y:    validate.Int(req["y"]),
		Year: validate.Int(req["year"]),
		Sex:  req["sex"],
	}
	if err := s.InsertNode(ctx, node); err != nil {
		return Result{}, err
	}

	if _, err := s.GetNode(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: node %d missing after insert", errPostCondition, id)
		}
		return Result{}, err
	}

	par := &Params{
		ID:   i64(node.ID),
		Name: str(node.Name),
		X:    i64(node.X),
		Y:    i64(node.Y),
		Year: i64(node.Year),
		Sex:  str(node.Sex),
	}
	if err := s.WriteAudit(ctx, "create_node", model.TargetNode, nodeTarget(id), par); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Par: par}, nil
}

func (d *Dispatcher) editNode(ctx context.Context, s *db.Session, req Request) (Result, error) {
	if !req.Has("id") {
		return missingField("id"), nil
	}
	if !req.Has("name") && !req.Has("year") && !req.Has("sex") {
		return failure(StatusMissingField, msgNoEdits), nil
	}
	if !d.validID(req["id"]) {
		return failure(StatusInvalidField, msgBadNodeID), nil
	}
	if req.Has("year") && !d.validYear(req["year"]) {
		return failure(StatusInvalidField, msgBadYear), nil
	}
	if req.Has("sex") && !validate.Sex(req["sex"]) {
		return failure(StatusInvalidField, msgBadSex), nil
	}

	id := validate.Int(req["id"])
	exists, err := s.NodeExists(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return failure(StatusNotFound, msgNoNode), nil
	}

	var upd db.NodeUpdate
	par := &Params{ID: i64(id)}
	if req.Has("name") {
		upd.Name = str(validate.SanitizeName(req["name"]))
		par.Name = upd.Name
	}
	if req.Has("year") {
		upd.Year = i64(validate.Int(req["year"]))
		par.Year = upd.Year
	}
	if req.Has("sex") {
		upd.Sex = str(req["sex"])
		par.Sex = upd.Sex
	}
	if err := s.UpdateNode(ctx, id, upd); err != nil {
		return Result{}, err
	}
	if err := verifyNode(ctx, s, id, upd); err != nil {
		return Result{}, err
	}

	if err := s.WriteAudit(ctx, "edit_node", model.TargetNode, nodeTarget(id), par); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Par: par}, nil
}

func (d *Dispatcher) moveNode(ctx context.Context, s *db.Session, req Request) (Result, error) {
	if f, ok := req.firstMissing("id", "x", "y"); ok {
		return missingField(f), nil
	}
	if !d.validID(req["id"]) {
		return failure(StatusInvalidField, msgBadNodeID), nil
	}
	if !d.validX(req["x"]) {
		return failure(StatusInvalidField, msgBadX), nil
	}
	if !d.validY(req["y"]) {
		return failure(StatusInvalidField, msgBadY), nil
	}

	id := validate.Int(req["id"])
	exists, err := s.NodeExists(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return failure(StatusNotFound, msgNoNode), nil
	}

	upd := db.NodeUpdate{X: i64(validate.Int(req["x"])), Y: i64(validate.Int(req["y"]))}
	if err := s.UpdateNode(ctx, id, upd); err != nil {
		return Result{}, err
	}
	if err := verifyNode(ctx, s, id, upd); err != nil {
		return Result{}, err
	}

	par := &Params{ID: i64(id), X: upd.X, Y: upd.Y}
	if err := s.WriteAudit(ctx, "move_node", model.TargetNode, nodeTarget(id), par); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Par: par}, nil
}

func (d *Dispatcher) deleteNode(ctx context.Context, s *db.Session, req Request) (Result, error) {
	if !req.Has("id") {
		return missingField("id"), nil
	}
	if !d.validID(req["id"]) {
		return failure(StatusInvalidField, msgBadNodeID), nil
	}

	id := validate.Int(req["id"])
	exists, err := s.NodeExists(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return failure(StatusNotFound, msgNoNode), nil
	}
	inUse, err := s.NodeHasEdges(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if inUse {
		return failure(StatusHasEdges, msgNodeInUse), nil
	}

	if err := s.DeleteNode(ctx, id); err != nil {
		return Result{}, err
	}
	stillThere, err := s.NodeExists(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if stillThere {
		return Result{}, fmt.Errorf("%w: node %d present after delete", errPostCondition, id)
	}

	par := &Params{ID: i64(id)}
	if err := s.WriteAudit(ctx, "delete_node", model.TargetNode, nodeTarget(id), par); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOK, Par: par}, nil
}

// verifyNode re-reads a node and checks that every column in upd was written.
func verifyNode(ctx context.Context, s *db.Session, id int64, upd db.NodeUpdate) error {
	n, err := s.GetNode(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: node %d missing after update", errPostCondition, id)
	}
	if err != nil {
		return err
	}

	mismatch := (upd.Name != nil && n.Name != *upd.Name) ||
		(upd.X != nil && n.X != *upd.X) ||
		(upd.Y != nil && n.Y != *upd.Y) ||
		(upd.Year != nil && n.Year != *upd.Year) ||
		(upd.Sex != nil && n.Sex != *upd.Sex)
	if mismatch {
		return fmt.Errorf("%w: node %d does not reflect update", errPostCondition, id)
	}
	return nil
}
