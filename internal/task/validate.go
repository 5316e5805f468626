package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/tasky/internal/model"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
	dateOnlyLayout       = "2006-01-02"
)

// 検証メッセージ。クライアントにそのまま表示される。
const (
	msgTitleRequired       = "Title is required"
	msgTitleEmpty          = "Title cannot be empty"
	msgTitleTooLong        = "Title must be less than 100 characters"
	msgDescriptionRequired = "Description is required"
	msgDescriptionEmpty    = "Description cannot be empty"
	msgDescriptionTooLong  = "Description must be less than 500 characters"
	msgDueDateRequired     = "Due date is required"
	msgDueDateInvalid      = "Due date is invalid"
	msgDueDatePast         = "Due date cannot be in the past"
	msgPriorityRequired    = "Priority is required"
	msgPriorityInvalid     = "Priority must be 'low', 'medium', or 'high'"
	msgCategoryRequired    = "Category is required"
	msgCategoryInvalid     = "Category must be 'work', 'personal', 'study', or 'other'"
)

// validator は検証エラーを出現順に蓄積する。
type validator struct {
	errs []string
}

func (v *validator) add(msg string) {
	v.errs = append(v.errs, msg)
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return model.NewValidationError(v.errs)
}

func (v *validator) title(title string, required bool) {
	switch {
	case title == "" && required:
		v.add(msgTitleRequired)
	case title == "":
		v.add(msgTitleEmpty)
	case utf8.RuneCountInString(title) > maxTitleLength:
		v.add(msgTitleTooLong)
	}
}

func (v *validator) description(desc string, required bool) {
	switch {
	case desc == "" && required:
		v.add(msgDescriptionRequired)
	case desc == "":
		v.add(msgDescriptionEmpty)
	case utf8.RuneCountInString(desc) > maxDescriptionLength:
		v.add(msgDescriptionTooLong)
	}
}

// dueDate は期日を解析し、過去日付を拒否する。
// 日付のみの指定は当日中であれば受け付ける。
func (v *validator) dueDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.add(msgDueDateRequired)
		return time.Time{}
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		if t.Before(now) {
			v.add(msgDueDatePast)
		}
		return t.UTC()
	}

	if t, err := time.Parse(dateOnlyLayout, raw); err == nil {
		today := now.UTC().Truncate(24 * time.Hour)
		if t.Before(today) {
			v.add(msgDueDatePast)
		}
		return t
	}

	v.add(msgDueDateInvalid)
	return time.Time{}
}

func (v *validator) priority(raw string, required bool) model.Priority {
	p := model.Priority(raw)
	switch {
	case raw == "" && required:
		v.add(msgPriorityRequired)
	case !p.Valid():
		v.add(msgPriorityInvalid)
	}
	return p
}

func (v *validator) category(raw string, required bool) model.Category {
	c := model.Category(raw)
	switch {
	case raw == "" && required:
		v.add(msgCategoryRequired)
	case !c.Valid():
		v.add(msgCategoryInvalid)
	}
	return c
}
