package builtins

import (
	"context"

	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/access"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/caperr"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/capability"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/params"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/query"
	"github.com/willbullen/BIM-Solar-Power-Management-sub002/internal/sandbox"
)

func equipmentCapabilities() []*capability.Spec {
	return []*capability.Spec{
		{
			Name:        "getEquipmentList",
			Description: "List solar equipment, optionally filtered by type or status.",
			Module:      "equipment",
			AccessLevel: access.LevelPublic,
			ReturnHint:  "array of equipment records",
			Tags:        []string{"equipment", "read"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"type":   {Type: "string", Description: "Equipment type filter, e.g. inverter or panel"},
					"status": {Type: "string", Description: "Status filter, e.g. active or faulted"},
					"limit":  {Type: "number", Description: "Maximum records to return", Default: float64(100)},
				},
			},
			Handler: getEquipmentList,
		},
		{
			Name:        "getEquipmentDetail",
			Description: "Fetch a single piece of equipment by id.",
			Module:      "equipment",
			AccessLevel: access.LevelUser,
			ReturnHint:  "equipment record or null",
			Tags:        []string{"equipment", "read"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"equipmentId": {Type: "number", Description: "Equipment id"},
				},
				Required: []string{"equipmentId"},
			},
			Handler: getEquipmentDetail,
		},
		{
			Name:        "updateEquipmentStatus",
			Description: "Change equipment status and record the transition in the status history.",
			Module:      "equipment",
			AccessLevel: access.LevelManager,
			ReturnHint:  "object with updated row count",
			Tags:        []string{"equipment", "write"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"equipmentId": {Type: "number", Description: "Equipment id"},
					"status":      {Type: "string", Description: "New status", Enum: []string{"active", "inactive", "maintenance", "faulted"}},
					"reason":      {Type: "string", Description: "Why the status changed"},
				},
				Required: []string{"equipmentId", "status"},
			},
			Handler: updateEquipmentStatus,
		},
		{
			Name:        "logMaintenance",
			Description: "Record a maintenance log entry for a piece of equipment.",
			Module:      "equipment",
			AccessLevel: access.LevelUser,
			ReturnHint:  "object with inserted row count",
			Tags:        []string{"equipment", "maintenance", "write"},
			Parameters: params.Schema{
				Type: "object",
				Properties: map[string]params.Property{
					"equipmentId": {Type: "number", Description: "Equipment id"},
					"notes":       {Type: "string", Description: "Maintenance notes"},
					"technician":  {Type: "string", Description: "Who performed the work"},
				},
				Required: []string{"equipmentId", "notes"},
			},
			Handler: logMaintenance,
		},
	}
}

func getEquipmentList(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	filters := map[string]any{}
	if t, ok := argString(args, "type"); ok && t != "" {
		filters["type"] = t
	}
	if s, ok := argString(args, "status"); ok && s != "" {
		filters["status"] = s
	}
	return db.Find(ctx, "equipment", filters, query.Options{Limit: argLimit(args), OrderBy: "name"})
}

func getEquipmentDetail(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	id, ok := argNumber(args, "equipmentId")
	if !ok {
		return nil, caperr.Validationf("equipmentId must be a number")
	}
	return db.Get(ctx, "equipment", map[string]any{"id": int64(id)})
}

// updateEquipmentStatus is a multi-statement write: the status change and
// its history record commit or roll back together.
func updateEquipmentStatus(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	id, ok := argNumber(args, "equipmentId")
	if !ok {
		return nil, caperr.Validationf("equipmentId must be a number")
	}
	status, _ := argString(args, "status")
	reason, _ := argString(args, "reason")

	var updated int64
	err := db.WithTx(ctx, func(tx *sandbox.Facade) error {
		n, err := tx.Update(ctx, "equipment",
			map[string]any{"status": status},
			map[string]any{"id": int64(id)})
		if err != nil {
			return err
		}
		if n == 0 {
			return caperr.NotFoundf("equipment %d not found", int64(id))
		}
		updated = n
		_, err = tx.Insert(ctx, "equipment_status_history", map[string]any{
			"equipmentId": int64(id),
			"status":      status,
			"reason":      reason,
			"changedBy":   tx.Caller().ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"updated": updated, "status": status}, nil
}

func logMaintenance(ctx context.Context, db *sandbox.Facade, args map[string]any) (any, error) {
	id, ok := argNumber(args, "equipmentId")
	if !ok {
		return nil, caperr.Validationf("equipmentId must be a number")
	}
	notes, _ := argString(args, "notes")
	technician, _ := argString(args, "technician")

	var inserted int64
	insert := func() error {
		n, err := db.Insert(ctx, "maintenance_logs", map[string]any{
			"equipmentId": int64(id),
			"notes":       notes,
			"technician":  technician,
			"loggedBy":    db.Caller().ID,
		})
		inserted = n
		return err
	}
	// Maintenance entries matter enough to ride out a connection hiccup.
	if err := db.WithRetry(ctx, insert); err != nil {
		return nil, err
	}
	return map[string]any{"inserted": inserted}, nil
}
