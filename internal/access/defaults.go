package access

// DefaultTablePermissions returns the permission patterns for the solar
// monitoring schema. Loaded at startup; mutable only through an explicit
// rebuild of the Evaluator, never through agent-initiated calls.
func DefaultTablePermissions() TablePermissions {
	return TablePermissions{
		RoleGuest: {
			OpRead: {"equipment"},
		},
		RoleUser: {
			OpRead:  {"equipment", "power_data", "environmental_data", "energy_prices", "report_*"},
			OpWrite: {"maintenance_logs"},
		},
		RoleManager: {
			OpRead:   {"equipment*", "power_data", "environmental_data", "energy_prices", "maintenance_logs", "alerts", "report_*"},
			OpWrite:  {"equipment*", "maintenance_logs", "alerts", "report_*"},
			OpDelete: {"maintenance_logs"},
		},
		RoleAdmin: {
			OpRead:   {"*"},
			OpWrite:  {"*"},
			OpDelete: {"*"},
		},
	}
}
