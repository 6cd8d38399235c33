package pgcron

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// standardParser accepts the classic five-field form; pg_cron additionally
// supports an optional leading seconds field, so a bare five-field
// expression and a six-field one are both tried before rejecting.
var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
var secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateExpression performs an offline syntax check on a cron
// expression before it is ever sent to pg_cron. It never computes fire
// times — that decision belongs to pg_cron alone.
func ValidateExpression(expr string) error {
	if _, err := standardParser.Parse(expr); err == nil {
		return nil
	}
	if _, err := secondsParser.Parse(expr); err == nil {
		return nil
	}
	return fmt.Errorf("invalid cron expression %q", expr)
}
