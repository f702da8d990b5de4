package alerts

import (
	"context"
	"time"

	"github.com/coindeck/coindeck/pkg/coindeck/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pricer resolves a token's current USD price.
type Pricer interface {
	GetPrice(ctx context.Context, tokenID string) (float64, error)
}

// Checker periodically evaluates active alerts against live prices.
type Checker struct {
	db     *gorm.DB
	prices Pricer
	logger *zap.Logger
	cron   *cron.Cron
}

// NewChecker creates an alert checker.
func NewChecker(db *gorm.DB, prices Pricer, logger *zap.Logger) *Checker {
	return &Checker{db: db, prices: prices, logger: logger}
}

// Start schedules evaluation on the given cron spec (e.g. "@every 1m").
func (c *Checker) Start(spec string) error {
	c.cron = cron.New()
	_, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.CheckOnce(ctx); err != nil {
			c.logger.Error("alert check failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (c *Checker) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

// CheckOnce evaluates all active, untriggered alerts. Each token's price is
// fetched once per run no matter how many alerts reference it.
func (c *Checker) CheckOnce(ctx context.Context) error {
	var alerts []models.Alert
	if err := c.db.Where("active = ? AND triggered_at IS NULL", true).Find(&alerts).Error; err != nil {
		return err
	}
	if len(alerts) == 0 {
		return nil
	}

	priceByToken := make(map[string]float64)
	for _, a := range alerts {
		if _, seen := priceByToken[a.Token]; seen {
			continue
		}
		price, err := c.prices.GetPrice(ctx, a.Token)
		if err != nil {
			c.logger.Warn("skipping token, price fetch failed",
				zap.String("token", a.Token), zap.Error(err))
			continue
		}
		priceByToken[a.Token] = price
	}

	now := time.Now()
	for i := range alerts {
		a := &alerts[i]
		price, ok := priceByToken[a.Token]
		if !ok {
			continue
		}
		if !crossed(a, price) {
			continue
		}

		a.TriggeredAt = &now
		a.Active = false
		if err := c.db.Model(a).Updates(map[string]interface{}{
			"triggered_at": now,
			"active":       false,
		}).Error; err != nil {
			c.logger.Error("failed to mark alert triggered",
				zap.Uint("alert_id", a.ID), zap.Error(err))
			continue
		}

		c.logger.Info("price alert triggered",
			zap.Uint("alert_id", a.ID),
			zap.Uint("user_id", a.UserID),
			zap.String("token", a.Token),
			zap.String("direction", string(a.Direction)),
			zap.Float64("threshold", a.Threshold),
			zap.Float64("price", price))
	}

	return nil
}

func crossed(a *models.Alert, price float64) bool {
	switch a.Direction {
	case models.AlertAbove:
		return price >= a.Threshold
	case models.AlertBelow:
		return price <= a.Threshold
	default:
		return false
	}
}
