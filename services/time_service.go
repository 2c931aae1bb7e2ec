package services

import (
	"strings"
	"time"

	"astra/errs"
)

var birthDateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006"}

var birthTimeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "03:04 PM", "03:04PM"}

// GetCurrentTimestamp は現在のタイムスタンプをISO8601形式で返します
func GetCurrentTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NormalizeBirthDate は YYYY-MM-DD / DD/MM/YYYY を YYYY-MM-DD にそろえる
func NormalizeBirthDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.After(time.Now()) {
				return "", errs.WithMessage(errs.ErrInvalidBirthDate, "birth date is in the future")
			}
			return t.Format("2006-01-02"), nil
		}
	}
	return "", errs.ErrInvalidBirthDate
}

// NormalizeBirthTime は HH:MM (24時間) にそろえる
func NormalizeBirthTime(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range birthTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", errs.ErrInvalidBirthTime
}

// LoadTimezone は空なら既定のタイムゾーンを使う
func LoadTimezone(name, fallback string) (*time.Location, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, "", errs.Wrap(errs.ErrInvalidTimezone, err)
	}
	return loc, name, nil
}

// BirthInstant は正規化済みの日付・時刻を出生地の時刻として解釈する
func BirthInstant(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.ErrInvalidBirthDate, err)
	}
	return t, nil
}
