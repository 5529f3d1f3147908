package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/teamcredits/pkg/errors"
)

// Domain errors surfaced to API consumers.
var (
	ErrTeamMemberNotFound  = apperrors.New("TEAM_MEMBER_NOT_FOUND", "Team member not found", http.StatusNotFound)
	ErrCreditGrantNotFound = apperrors.New("CREDIT_GRANT_NOT_FOUND", "Credit grant not found", http.StatusNotFound)
	ErrUnknownReference    = apperrors.New("UNKNOWN_PURCHASE_REFERENCE", "Unknown purchase reference", http.StatusNotFound)

	ErrDuplicateMember  = apperrors.New("DUPLICATE_TEAM_MEMBER", "Team member is already invited", http.StatusConflict)
	ErrAlreadyCompleted = apperrors.New("TEAM_MEMBER_ALREADY_COMPLETED", "Team member has already completed onboarding", http.StatusConflict)
	ErrMemberNotActive  = apperrors.New("TEAM_MEMBER_NOT_ACTIVE", "Team member is not eligible for credit purchases", http.StatusConflict)
	ErrInvalidState     = apperrors.New("CREDIT_GRANT_INVALID_STATE", "Credit grant is not active", http.StatusConflict)

	ErrInvalidSignature = apperrors.New("INVALID_SIGNATURE", "Invalid event signature", http.StatusBadRequest)
	ErrSelfInvite       = apperrors.New("SELF_INVITE", "Manager cannot invite themselves", http.StatusBadRequest)
	ErrInvalidEmail     = apperrors.New("INVALID_EMAIL", "Invalid email format", http.StatusBadRequest)
	ErrInvalidAmount    = apperrors.New("INVALID_AMOUNT", "Amount must be between 1 and 999999", http.StatusBadRequest)
	ErrInvalidAction    = apperrors.New("INVALID_ACTION", "Invalid action type", http.StatusBadRequest)

	ErrPaymentProviderUnavailable = apperrors.New("PAYMENT_PROVIDER_UNAVAILABLE", "Payment provider unavailable", http.StatusBadGateway)
	ErrNotificationProvider       = apperrors.New("NOTIFICATION_PROVIDER_ERROR", "Notification could not be delivered", http.StatusBadGateway)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}
