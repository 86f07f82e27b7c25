package ops

import (
	"context"
	"fmt"

	"graf/internal/db"
	"graf/internal/model"
)

func (d *Dispatcher) fetchGraph(ctx context.Context, s *db.Session, _ Request) (Result, error) {
	nodes, err := s.ListNodes(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing nodes: %w", err)
	}
	edges, err := s.ListEdges(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("listing edges: %w", err)
	}
	return Result{Status: StatusOK, Data: model.NewGraph(nodes, edges)}, nil
}
