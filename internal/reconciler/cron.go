package reconciler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextDue вычисляет время следующего sweep'а.
// Если задано cron-выражение, оно имеет приоритет; иначе интервал.
func NextDue(cronExpr string, interval time.Duration, from time.Time) (time.Time, error) {
	if cronExpr != "" {
		schedule, err := cronParser.Parse(cronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
		}
		return schedule.Next(from), nil
	}

	if interval > 0 {
		return from.Add(interval), nil
	}

	return time.Time{}, fmt.Errorf("reconciler has neither cron expression nor interval")
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	return err
}
