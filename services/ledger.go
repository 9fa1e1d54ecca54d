package services

import (
	"fmt"
	"strconv"

	"fitmixapi/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageKind string

const (
	UsageSearch UsageKind = "search"
	UsageRender UsageKind = "render"
)

const (
	ReasonUserExhausted   = "user_exhausted"
	ReasonGlobalExhausted = "global_exhausted"
)

// UsageLedger enforces the lifetime caps. All counter mutation goes through
// CheckAndIncrement, which serializes on row locks: a slot is never handed
// out twice.
type UsageLedger struct {
	DB *gorm.DB

	UserSearchLimit   int
	UserRenderLimit   int
	GlobalSearchLimit int
	GlobalRenderLimit int
}

func envInt(key string, fallback int) int {
	value, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func NewUsageLedger(db *gorm.DB) *UsageLedger {
	return &UsageLedger{
		DB:                db,
		UserSearchLimit:   envInt("USER_SEARCH_LIMIT", 1),
		UserRenderLimit:   envInt("USER_RENDER_LIMIT", 1),
		GlobalSearchLimit: envInt("GLOBAL_SEARCH_LIMIT", 100),
		GlobalRenderLimit: envInt("GLOBAL_RENDER_LIMIT", 50),
	}
}

type UsageDecision struct {
	Allowed         bool
	Reason          string
	UserRemaining   int
	GlobalRemaining int
}

// CheckAndIncrement atomically takes one slot of the given kind for the
// identity. Both the per-identity and the global cap are checked inside one
// transaction holding FOR UPDATE locks on both rows, so concurrent calls for
// the last slot cannot both succeed.
func (l *UsageLedger) CheckAndIncrement(identity string, kind UsageKind) (*UsageDecision, error) {
	decision := &UsageDecision{}

	err := l.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.GlobalUsage{ID: 1}).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UsageRecord{IdentityKey: identity}).Error; err != nil {
			return err
		}

		var global models.GlobalUsage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = 1").Take(&global).Error; err != nil {
			return err
		}
		var record models.UsageRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("identity_key = ?", identity).Take(&record).Error; err != nil {
			return err
		}

		userCount, userLimit := record.SearchCount, l.UserSearchLimit
		globalCount, globalLimit := global.SearchCount, l.GlobalSearchLimit
		if kind == UsageRender {
			userCount, userLimit = record.RenderCount, l.UserRenderLimit
			globalCount, globalLimit = global.RenderCount, l.GlobalRenderLimit
		}

		if userCount >= userLimit {
			decision.Reason = ReasonUserExhausted
			decision.UserRemaining = 0
			decision.GlobalRemaining = globalLimit - globalCount
			return nil
		}
		if globalCount >= globalLimit {
			decision.Reason = ReasonGlobalExhausted
			decision.UserRemaining = userLimit - userCount
			decision.GlobalRemaining = 0
			return nil
		}

		if kind == UsageRender {
			record.RenderCount++
			global.RenderCount++
		} else {
			record.SearchCount++
			global.SearchCount++
		}
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		if err := tx.Save(&global).Error; err != nil {
			return err
		}

		decision.Allowed = true
		decision.UserRemaining = userLimit - userCount - 1
		decision.GlobalRemaining = globalLimit - globalCount - 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("usage ledger transaction failed: %w", err)
	}
	return decision, nil
}

// Snapshot reads the current counters without taking a slot.
func (l *UsageLedger) Snapshot(identity string) (*models.UsageOut, error) {
	var record models.UsageRecord
	result := l.DB.Where("identity_key = ?", identity).Take(&record)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, result.Error
	}

	var global models.GlobalUsage
	result = l.DB.Where("id = 1").Take(&global)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, result.Error
	}

	globalSearchesRemaining := l.GlobalSearchLimit - global.SearchCount
	globalRendersRemaining := l.GlobalRenderLimit - global.RenderCount

	return &models.UsageOut{
		SearchCount:             record.SearchCount,
		RenderCount:             record.RenderCount,
		SearchLimit:             l.UserSearchLimit,
		RenderLimit:             l.UserRenderLimit,
		CanSearch:               record.SearchCount < l.UserSearchLimit && globalSearchesRemaining > 0,
		CanRender:               record.RenderCount < l.UserRenderLimit && globalRendersRemaining > 0,
		SearchExhausted:         record.SearchCount >= l.UserSearchLimit,
		RenderExhausted:         record.RenderCount >= l.UserRenderLimit,
		GlobalSearchesRemaining: globalSearchesRemaining,
		GlobalRendersRemaining:  globalRendersRemaining,
	}, nil
}

// GlobalCounters reads the shared row for the admin stats endpoint.
func (l *UsageLedger) GlobalCounters() (*models.GlobalUsage, error) {
	var global models.GlobalUsage
	result := l.DB.Where("id = 1").Take(&global)
	if result.Error != nil && result.Error != gorm.ErrRecordNotFound {
		return nil, result.Error
	}
	return &global, nil
}
