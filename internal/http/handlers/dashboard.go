package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/domain/loan"
	"github.com/swiftloan/api/internal/domain/report"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/http/middlewares"
	"github.com/swiftloan/api/internal/repo/postgres"
)

type StatsRepository interface {
	CountUsersBetween(ctx context.Context, from, to time.Time) (int, error)
	CountLoansByStatusBetween(ctx context.Context, status loan.Status, from, to time.Time) (int, error)
	CountLoans(ctx context.Context) (int, error)
	CountDisbursedLoans(ctx context.Context) (int, error)
	SumDisbursedBetween(ctx context.Context, from, to time.Time) (float64, error)
	RecentLoanActivities(ctx context.Context, limit int) ([]report.Activity, error)
	RecentUserActivities(ctx context.Context, limit int) ([]report.Activity, error)
	RecentTicketActivities(ctx context.Context, limit int) ([]report.Activity, error)
}

type DashboardCache interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, val string, ttl time.Duration) error
}

type DashboardUserReader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type DashboardLoanReader interface {
	ListByOwner(ctx context.Context, userID string) ([]loan.Loan, error)
}

type DashboardHandler struct {
	stats StatsRepository
	users DashboardUserReader
	loans DashboardLoanReader
	cache DashboardCache // nil when Redis is not configured
	now   func() time.Time
}

func NewDashboardHandler(stats StatsRepository, users DashboardUserReader, loans DashboardLoanReader, cache DashboardCache) *DashboardHandler {
	return &DashboardHandler{
		stats: stats,
		users: users,
		loans: loans,
		cache: cache,
		now:   time.Now,
	}
}

const (
	adminDashboardCacheKey = "dashboard:admin"
	adminDashboardCacheTTL = 30 * time.Second
)

type AdminDashboard struct {
	TotalUsers     int               `json:"totalUsers"`
	UserGrowth     string            `json:"userGrowth"`
	ActiveLoans    int               `json:"activeLoans"`
	LoanGrowth     string            `json:"loanGrowth"`
	TotalDisbursed float64           `json:"totalDisbursed"`
	AmountGrowth   string            `json:"amountGrowth"`
	ApprovalRate   string            `json:"approvalRate"`
	Activities     []report.Activity `json:"activities"`
}

// GET /api/admin/dashboard
//
// Fans out a dozen aggregate queries, so the assembled payload is kept
// in Redis for a short TTL.
func (h *DashboardHandler) Admin(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	if h.cache != nil {
		if raw, ok, err := h.cache.GetString(cctx, adminDashboardCacheKey); err == nil && ok {
			var cached AdminDashboard
			if json.Unmarshal([]byte(raw), &cached) == nil {
				ctx.JSON(http.StatusOK, cached)
				return
			}
		}
	}

	dash, err := h.buildAdminDashboard(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not build dashboard")
		return
	}

	if h.cache != nil {
		if raw, err := json.Marshal(dash); err == nil {
			_ = h.cache.SetString(cctx, adminDashboardCacheKey, string(raw), adminDashboardCacheTTL)
		}
	}

	ctx.JSON(http.StatusOK, dash)
}

func (h *DashboardHandler) buildAdminDashboard(ctx context.Context) (AdminDashboard, error) {
	now := h.now().UTC()
	thisStart, lastStart, lastEnd := report.MonthWindows(now)

	var zero time.Time

	totalUsers, err := h.stats.CountUsersBetween(ctx, zero, zero)
	if err != nil {
		return AdminDashboard{}, err
	}
	usersThis, err := h.stats.CountUsersBetween(ctx, thisStart, now)
	if err != nil {
		return AdminDashboard{}, err
	}
	usersLast, err := h.stats.CountUsersBetween(ctx, lastStart, lastEnd)
	if err != nil {
		return AdminDashboard{}, err
	}

	activeLoans, err := h.stats.CountLoansByStatusBetween(ctx, loan.StatusApproved, zero, zero)
	if err != nil {
		return AdminDashboard{}, err
	}
	loansThis, err := h.stats.CountLoansByStatusBetween(ctx, loan.StatusApproved, thisStart, now)
	if err != nil {
		return AdminDashboard{}, err
	}
	loansLast, err := h.stats.CountLoansByStatusBetween(ctx, loan.StatusApproved, lastStart, lastEnd)
	if err != nil {
		return AdminDashboard{}, err
	}

	totalDisbursed, err := h.stats.SumDisbursedBetween(ctx, zero, zero)
	if err != nil {
		return AdminDashboard{}, err
	}
	amountThis, err := h.stats.SumDisbursedBetween(ctx, thisStart, now)
	if err != nil {
		return AdminDashboard{}, err
	}
	amountLast, err := h.stats.SumDisbursedBetween(ctx, lastStart, lastEnd)
	if err != nil {
		return AdminDashboard{}, err
	}

	totalLoans, err := h.stats.CountLoans(ctx)
	if err != nil {
		return AdminDashboard{}, err
	}
	disbursedCount, err := h.stats.CountDisbursedLoans(ctx)
	if err != nil {
		return AdminDashboard{}, err
	}

	loanActs, err := h.stats.RecentLoanActivities(ctx, 5)
	if err != nil {
		return AdminDashboard{}, err
	}
	userActs, err := h.stats.RecentUserActivities(ctx, 3)
	if err != nil {
		return AdminDashboard{}, err
	}
	ticketActs, err := h.stats.RecentTicketActivities(ctx, 2)
	if err != nil {
		return AdminDashboard{}, err
	}

	return AdminDashboard{
		TotalUsers:     totalUsers,
		UserGrowth:     report.Growth(float64(usersThis), float64(usersLast)),
		ActiveLoans:    activeLoans,
		LoanGrowth:     report.Growth(float64(loansThis), float64(loansLast)),
		TotalDisbursed: totalDisbursed,
		AmountGrowth:   report.Growth(amountThis, amountLast),
		ApprovalRate:   report.Rate(float64(disbursedCount), float64(totalLoans)),
		Activities:     report.MergeActivities(10, loanActs, userActs, ticketActs),
	}, nil
}

type UserDashboard struct {
	User         user.User         `json:"user"`
	ActiveLoans  int               `json:"activeLoans"`
	PendingLoans int               `json:"pendingLoans"`
	RepaidLoans  int               `json:"repaidLoans"`
	Activities   []report.Activity `json:"activities"`
}

// GET /api/user/dashboard
func (h *DashboardHandler) User(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok || userID == "" {
		RespondUnauthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not build dashboard")
		return
	}

	loans, err := h.loans.ListByOwner(cctx, userID)
	if err != nil {
		RespondInternal(ctx, "Could not build dashboard")
		return
	}

	dash := UserDashboard{User: u, Activities: []report.Activity{}}

	for _, l := range loans {
		switch l.Status {
		case loan.StatusApproved:
			dash.ActiveLoans++
		case loan.StatusPending:
			dash.PendingLoans++
		case loan.StatusRepaid:
			dash.RepaidLoans++
		}
	}

	// loans arrive newest first
	for _, l := range loans {
		if len(dash.Activities) == 5 {
			break
		}

		amount := l.Amount
		dash.Activities = append(dash.Activities, report.Activity{
			Kind:   loanActivityKind(l.Status),
			User:   u.Name,
			Amount: &amount,
			At:     l.UpdatedAt,
		})
	}

	ctx.JSON(http.StatusOK, dash)
}

func loanActivityKind(s loan.Status) report.ActivityKind {
	switch s {
	case loan.StatusApproved:
		return report.ActivityLoanApproved
	case loan.StatusRejected:
		return report.ActivityLoanRejected
	case loan.StatusRepaid:
		return report.ActivityLoanRepaid
	default:
		return report.ActivityLoanPending
	}
}
