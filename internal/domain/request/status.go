package request

import "sort"

// SortApprovals orders approvals by ascending level in place.
func SortApprovals(approvals []Approval) {
	sort.Slice(approvals, func(i, j int) bool { return approvals[i].Level < approvals[j].Level })
}

// ActiveApproval returns the lowest level pending approval, the only step
// that may be acted on while its request is pending.
func ActiveApproval(approvals []Approval) (Approval, bool) {
	var active Approval
	found := false
	for _, a := range approvals {
		if a.Status != ApprovalPending {
			continue
		}
		if !found || a.Level < active.Level {
			active = a
			found = true
		}
	}
	return active, found
}

// DeriveStatus computes the request status implied by its approval chain.
// It returns ErrInconsistentChain when the rows cannot have been produced by
// level ordered approve/reject actions.
func DeriveStatus(approvals []Approval) (Status, error) {
	if len(approvals) == 0 {
		return "", ErrInconsistentChain
	}

	sorted := make([]Approval, len(approvals))
	copy(sorted, approvals)
	SortApprovals(sorted)

	rejectedAt := -1
	pendingSeen := false
	for i, a := range sorted {
		switch a.Status {
		case ApprovalApproved:
			if pendingSeen || rejectedAt >= 0 {
				return "", ErrInconsistentChain
			}
		case ApprovalRejected:
			if pendingSeen || rejectedAt >= 0 {
				return "", ErrInconsistentChain
			}
			rejectedAt = i
		case ApprovalSkipped:
			if rejectedAt < 0 {
				return "", ErrInconsistentChain
			}
		case ApprovalPending:
			pendingSeen = true
		default:
			return "", ErrInconsistentChain
		}
	}

	switch {
	case rejectedAt >= 0:
		return StatusRejected, nil
	case pendingSeen:
		return StatusPending, nil
	default:
		return StatusApproved, nil
	}
}
