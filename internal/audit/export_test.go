package audit

var (
	BuildAuditQuery = buildAuditQuery
	BuildUsageQuery = buildUsageQuery
	ParseIP         = parseIP
)
