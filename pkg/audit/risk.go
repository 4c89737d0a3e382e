package audit

// Blast-radius thresholds for risk classification.
const (
	criticalAffectedThreshold = 10
	mediumAffectedThreshold   = 5
)

// AssessRisk classifies an action into a risk level. It is a pure
// function of its inputs and its rules fire in strict priority order:
//
//  1. CRITICAL: bulk delete, or more than 10 affected users
//  2. HIGH: user deletion, or role modification
//  3. MEDIUM: bulk update, or more than 5 affected users
//  4. LOW: everything else
//
// Downstream statistics and retention reporting depend on these exact
// thresholds; do not reorder the rules.
func AssessRisk(action ActionType, resource ResourceType, affectedCount int) RiskLevel {
	if action == ActionBulkDelete || affectedCount > criticalAffectedThreshold {
		return RiskCritical
	}
	if (action == ActionDelete && resource == ResourceUser) ||
		(action == ActionUpdate && resource == ResourceRole) {
		return RiskHigh
	}
	if action == ActionBulkUpdate || affectedCount > mediumAffectedThreshold {
		return RiskMedium
	}
	return RiskLow
}
