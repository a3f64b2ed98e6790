package models

import "testing"

func TestCanTransitionFollowsLifecycle(t *testing.T) {
	legal := map[ProposalStatus][]ProposalStatus{
		ProposalSubmitted:       {ProposalUnderReview},
		ProposalUnderReview:     {ProposalUnderReview, ProposalApproved, ProposalRejected},
		ProposalApproved:        {ProposalBudgetRequested},
		ProposalBudgetRequested: {ProposalBudgetApproved},
	}

	for _, from := range ProposalStatuses {
		allowed := map[ProposalStatus]bool{}
		for _, to := range legal[from] {
			allowed[to] = true
		}
		for _, to := range ProposalStatuses {
			if got := CanTransition(from, to); got != allowed[to] {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, allowed[to])
			}
		}
	}
}

func TestRejectedBudgetLeavesNoWayBack(t *testing.T) {
	if CanTransition(ProposalBudgetRequested, ProposalApproved) {
		t.Fatal("budget_requested must not return to approved")
	}
	if ProposalBudgetRequested.Terminal() {
		t.Fatal("budget_requested is not terminal")
	}
	if !ProposalRejected.Terminal() || !ProposalBudgetApproved.Terminal() {
		t.Fatal("rejected and budget_approved are terminal")
	}
}

func TestStatusValidity(t *testing.T) {
	for _, s := range ProposalStatuses {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if ProposalStatus("draft").Valid() {
		t.Error("draft is not a proposal status")
	}
	if !BudgetPending.CanDecide() || BudgetApproved.CanDecide() || BudgetRejected.CanDecide() {
		t.Error("only pending budget requests accept a decision")
	}
	if Role("dean").Valid() || !RoleVicePresident.Valid() {
		t.Error("role validity mismatch")
	}
	if !RecommendRevise.Valid() || Recommendation("accept").Valid() {
		t.Error("recommendation validity mismatch")
	}
}
