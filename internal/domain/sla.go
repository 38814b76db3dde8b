package domain

import "time"

// SLAPolicy maps ticket priority to the duration allowed before the
// SLA deadline. Deadlines are recomputed whenever priority changes.
type SLAPolicy map[TicketPriority]time.Duration

// DefaultSLAPolicy returns the product defaults.
func DefaultSLAPolicy() SLAPolicy {
	return SLAPolicy{
		TicketPriorityLow:      72 * time.Hour,
		TicketPriorityMedium:   24 * time.Hour,
		TicketPriorityHigh:     4 * time.Hour,
		TicketPriorityCritical: time.Hour,
	}
}

// SLAPolicyFromSeconds builds a policy from configured durations,
// falling back to the defaults for non-positive values.
func SLAPolicyFromSeconds(low, medium, high, critical int) SLAPolicy {
	policy := DefaultSLAPolicy()
	if low > 0 {
		policy[TicketPriorityLow] = time.Duration(low) * time.Second
	}
	if medium > 0 {
		policy[TicketPriorityMedium] = time.Duration(medium) * time.Second
	}
	if high > 0 {
		policy[TicketPriorityHigh] = time.Duration(high) * time.Second
	}
	if critical > 0 {
		policy[TicketPriorityCritical] = time.Duration(critical) * time.Second
	}
	return policy
}

// DeadlineFor computes the SLA deadline for a priority from a base time.
func (p SLAPolicy) DeadlineFor(priority TicketPriority, from time.Time) time.Time {
	duration, ok := p[priority]
	if !ok {
		duration = DefaultSLAPolicy()[TicketPriorityMedium]
	}
	return from.Add(duration)
}
