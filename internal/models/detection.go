package models

import "time"

type ReviewStatus string

const (
	ReviewUnreviewed ReviewStatus = "unreviewed"
	ReviewReviewed   ReviewStatus = "reviewed"
)

// AnomalyDetection records an escalated verdict for admin review.
type AnomalyDetection struct {
	ID             string        `json:"id"`
	AccountID      string        `json:"account_id"`
	LoginAttemptID string        `json:"login_attempt_id"`
	Score          float64       `json:"score"`
	Tier           RiskTier      `json:"tier"`
	Action         Action        `json:"action"`
	AdminRequired  bool          `json:"admin_required"`
	AutoBlock      bool          `json:"auto_block"`
	Detail         string        `json:"detail"`
	Source         VerdictSource `json:"source"`
	ReviewStatus   ReviewStatus  `json:"review_status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewDetection builds the detection row for an escalated verdict.
func NewDetection(accountID, attemptID string, v Verdict, at time.Time) *AnomalyDetection {
	status := ReviewReviewed
	if v.AdminRequired {
		status = ReviewUnreviewed
	}
	return &AnomalyDetection{
		AccountID:      accountID,
		LoginAttemptID: attemptID,
		Score:          v.Score,
		Tier:           v.Tier,
		Action:         v.Action,
		AdminRequired:  v.AdminRequired,
		AutoBlock:      v.AutoBlock,
		Detail:         v.Detail,
		Source:         v.Source,
		ReviewStatus:   status,
		CreatedAt:      at,
	}
}

// TierCounts tallies detections per tier.
type TierCounts map[RiskTier]int

// AdminAction is a manual override applied to a detection.
type AdminAction string

const (
	AdminResetPassword  AdminAction = "reset_password"
	AdminPermanentBlock AdminAction = "permanent_block"
	AdminUnblock        AdminAction = "unblock"
	AdminStopMonitoring AdminAction = "stop_monitoring"
	AdminDismiss        AdminAction = "dismiss"
)

// AdminDecision is the single review decision recorded on a detection.
type AdminDecision struct {
	ID          string      `json:"id"`
	DetectionID string      `json:"detection_id"`
	AdminID     string      `json:"admin_id"`
	Action      AdminAction `json:"action"`
	Note        string      `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
