package constant

const (
	TICKET_CREATED       = "Ticket created successfully"
	TICKET_UPDATED       = "Ticket status updated successfully"
	SLA_CONFIG_SAVED     = "SLA configuration saved successfully"
	SLA_SWEEP_TRIGGERED  = "SLA sweep triggered successfully"
	VIOLATIONS_RETRIEVED = "SLA violations retrieved successfully"

	CONVERSATION_HAS_OPEN_TICKET = "Conversation has an open ticket, finalize it first"
)
