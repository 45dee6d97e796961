package models

// Permission names checked by the services.
const (
	PermInventoryRead      = "inventory:read"
	PermInventorySerialize = "inventory:serialize"
	PermTransfer           = "inventory:transfer"
	PermConsign            = "inventory:consign"
	PermConsume            = "inventory:consume"
	PermBreakCase          = "inventory:break_case"
	PermConsumeCommitted   = "inventory:consume_committed"
	PermAuditRead          = "audit:read"
	PermExceptionsResolve  = "exceptions:resolve"
	PermLocationsManage    = "locations:manage"
	PermJobsManage         = "jobs:manage"
)
