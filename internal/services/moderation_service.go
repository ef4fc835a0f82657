package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrReportNotFound     = errors.New("report not found")
	ErrInvalidContentType = errors.New("invalid content_type: must be user, post, comment, or review")
	ErrInvalidReportState = errors.New("invalid status: must be reviewed, actioned, or dismissed")
	ErrReasonRequired     = errors.New("reason is required")
)

var BannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno", "nudes",
	"scam", "scammer", "phishing", "malware",
}

var rejectionMessages = map[string]string{
	"inappropriate_language":   "Your post contains inappropriate language.",
	"contact_info_not_allowed": "Contact information is not allowed.",
	"spam_detected":            "This looks like spam.",
	"excessive_caps":           "Please avoid using excessive capital letters.",
}

// ContentRejectedError is returned when user text fails the content filter.
type ContentRejectedError struct {
	Reason string
}

func (e *ContentRejectedError) Error() string {
	if msg, ok := rejectionMessages[e.Reason]; ok {
		return msg
	}
	return "Your text does not meet our community guidelines."
}

var (
	validReportTypes    = map[string]bool{"user": true, "post": true, "comment": true, "review": true}
	validReportStatuses = map[string]bool{"reviewed": true, "actioned": true, "dismissed": true}
)

// ModerationService holds the text filter and the report queue. Patterns are
// compiled once at construction and are safe for concurrent use.
type ModerationService struct {
	db           *gorm.DB
	bannedWords  []*regexp.Regexp
	emailPattern *regexp.Regexp
	phonePattern *regexp.Regexp
	allCaps      *regexp.Regexp
}

func NewModerationService(db *gorm.DB) *ModerationService {
	ms := &ModerationService{
		db:           db,
		bannedWords:  make([]*regexp.Regexp, 0, len(BannedWords)),
		emailPattern: regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`),
		phonePattern: regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}|\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`),
		allCaps:      regexp.MustCompile(`\b[A-Z]{5,}\b`),
	}
	for _, word := range BannedWords {
		ms.bannedWords = append(ms.bannedWords, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}
	return ms
}

// Check returns a *ContentRejectedError when text is not allowed. Links are
// fine here: posts share clips and store pages all the time.
func (ms *ModerationService) Check(text string) error {
	if ok, reason := ms.FilterContent(text); !ok {
		return &ContentRejectedError{Reason: reason}
	}
	return nil
}

func (ms *ModerationService) FilterContent(text string) (bool, string) {
	if strings.TrimSpace(text) == "" {
		return true, ""
	}
	for _, re := range ms.bannedWords {
		if re.MatchString(text) {
			return false, "inappropriate_language"
		}
	}
	if ms.emailPattern.MatchString(text) || ms.phonePattern.MatchString(text) {
		return false, "contact_info_not_allowed"
	}
	if repeatedRun(text) {
		return false, "spam_detected"
	}
	if len(ms.allCaps.FindAllString(text, -1)) > 3 {
		return false, "excessive_caps"
	}
	return true, ""
}

// RE2 has no backreferences, so runs of one character are found by hand.
func repeatedRun(text string) bool {
	run := 1
	var prev rune
	for i, r := range text {
		if i > 0 && r == prev && r != ' ' {
			run++
			if run >= 8 {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}

func (ms *ModerationService) CreateReport(ctx context.Context, reporterID uuid.UUID, req *dto.CreateReportRequest) (*models.Report, error) {
	if !validReportTypes[req.ContentType] {
		return nil, ErrInvalidContentType
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if len(reason) > 500 {
		reason = reason[:500]
	}

	report := models.Report{
		ReporterID:  reporterID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      reason,
		Status:      "pending",
	}
	if err := ms.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return &report, nil
}

func (ms *ModerationService) ListReports(ctx context.Context, status string, limit, offset int) ([]models.Report, int64, error) {
	var (
		reports []models.Report
		total   int64
	)
	query := ms.db.WithContext(ctx).Model(&models.Report{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Limit(ClampLimit(limit)).Offset(offset).Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ActionReport records the admin decision. Actioning a post, comment or
// review report removes that content.
func (ms *ModerationService) ActionReport(ctx context.Context, reportID uuid.UUID, req *dto.ActionReportRequest) error {
	if !validReportStatuses[req.Status] {
		return ErrInvalidReportState
	}

	return ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.Report
		if err := tx.Where("id = ?", reportID).First(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReportNotFound
			}
			return err
		}
		if err := tx.Model(&report).Updates(map[string]interface{}{
			"status":     req.Status,
			"admin_note": req.AdminNote,
		}).Error; err != nil {
			return err
		}
		if req.Status != "actioned" {
			return nil
		}
		contentID, err := uuid.Parse(report.ContentID)
		if err != nil {
			return nil
		}
		switch report.ContentType {
		case "post":
			return deletePostTree(tx, contentID)
		case "comment":
			return deleteComment(tx, contentID)
		case "review":
			return deleteReviewTree(tx, contentID)
		}
		return nil
	})
}
