package models

import "testing"

func TestCanTransition_HappyPath(t *testing.T) {
	path := []TaskStatus{
		TaskStatusQueued, TaskStatusInProgress, TaskStatusNegotiating,
		TaskStatusPendingApproval, TaskStatusApproved, TaskStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Errorf("%s -> %s should be allowed", path[i], path[i+1])
		}
	}
}

func TestCanTransition_SkipNegotiation(t *testing.T) {
	if !TaskStatusInProgress.CanTransition(TaskStatusPendingApproval) {
		t.Error("IN_PROGRESS -> PENDING_APPROVAL should be allowed (nothing to negotiate)")
	}
	if !TaskStatusInProgress.CanTransition(TaskStatusApproved) {
		t.Error("IN_PROGRESS -> APPROVED should be allowed (auto-approve)")
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusRejected} {
		for _, to := range []TaskStatus{
			TaskStatusQueued, TaskStatusInProgress, TaskStatusNegotiating,
			TaskStatusPendingApproval, TaskStatusApproved, TaskStatusCompleted,
			TaskStatusFailed, TaskStatusRejected,
		} {
			if terminal.CanTransition(to) {
				t.Errorf("%s -> %s should be refused", terminal, to)
			}
		}
	}
}

func TestCanTransition_FailedReachableFromAnyNonTerminal(t *testing.T) {
	for _, from := range []TaskStatus{
		TaskStatusQueued, TaskStatusInProgress, TaskStatusNegotiating,
		TaskStatusPendingApproval, TaskStatusApproved,
	} {
		if !from.CanTransition(TaskStatusFailed) {
			t.Errorf("%s -> FAILED should be allowed", from)
		}
	}
}

func TestCanTransition_NoBackwardsMoves(t *testing.T) {
	if TaskStatusNegotiating.CanTransition(TaskStatusInProgress) {
		t.Error("NEGOTIATING -> IN_PROGRESS should be refused")
	}
	if TaskStatusApproved.CanTransition(TaskStatusPendingApproval) {
		t.Error("APPROVED -> PENDING_APPROVAL should be refused")
	}
	if TaskStatusPendingApproval.CanTransition(TaskStatusNegotiating) {
		t.Error("PENDING_APPROVAL -> NEGOTIATING should be refused")
	}
}

func TestParseUrgencyLevel(t *testing.T) {
	cases := []struct {
		in   string
		want UrgencyLevel
	}{
		{"CRITICAL", UrgencyCritical},
		{"critical", UrgencyCritical},
		{" high ", UrgencyHigh},
		{"", UrgencyMedium},
		{"LOW", UrgencyLow},
	}
	for _, tc := range cases {
		got, err := ParseUrgencyLevel(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseUrgencyLevel(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseUrgencyLevel("ASAP"); err == nil {
		t.Error("unknown urgency should error")
	}
}
