package fuji

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildHoldDetailNilWhenNotHumanReview(t *testing.T) {
	require.Nil(t, buildHoldDetail(Decision{InternalStatus: StatusAllow}))
}

func TestBuildHoldDetailPrefersPolicyViolation(t *testing.T) {
	d := Decision{
		InternalStatus: StatusHumanReview,
		Violations: []ViolationTag{
			{Layer: "evidence_gate", Code: "insufficient_evidence"},
			{Layer: "policy", Code: "policy_pii_exceeded", Detail: "category pii exceeded max_risk_allow"},
		},
	}
	hold := buildHoldDetail(d)
	require.NotNil(t, hold)
	require.Equal(t, ReasonPolicyEscalation, hold.Reason)
	require.Equal(t, PriorityHigh, hold.Priority)
}

func TestBuildHoldDetailFallsBackToEvidenceGate(t *testing.T) {
	d := Decision{
		InternalStatus: StatusHumanReview,
		Violations:     []ViolationTag{{Layer: "evidence_gate", Code: "insufficient_evidence"}},
	}
	hold := buildHoldDetail(d)
	require.NotNil(t, hold)
	require.Equal(t, ReasonInsufficientEvidence, hold.Reason)
}

func TestBuildHoldDetailDefaultsToSensitiveOperation(t *testing.T) {
	hold := buildHoldDetail(Decision{InternalStatus: StatusHumanReview})
	require.NotNil(t, hold)
	require.Equal(t, ReasonSensitiveOperation, hold.Reason)
}

func TestUnavailableCarriesHoldDetail(t *testing.T) {
	require.NotNil(t, Unavailable().Hold)
}
