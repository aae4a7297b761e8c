package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ParticipantCount は名簿に含まれる参加者の人数。
const ParticipantCount = 3

// Calendar は名簿と休暇期間からなる不変の設定。
// 起動時に1回構築し、Storeのコンストラクタへ明示的に渡す。
// Catsは要約文で使う猫の名前で、予約のルールには影響しない。
type Calendar struct {
	Roster Roster         `yaml:"roster" json:"roster" validate:"len=3,unique=ID,dive"`
	Window VacationWindow `yaml:"window" json:"window"`
	Cats   []string       `yaml:"cats,omitempty" json:"cats,omitempty" validate:"max=10,dive,required,max=32"`
}

// DefaultCalendar は既定の名簿（3名）と休暇期間 2026-07-25 〜 2026-08-05 を返す。
func DefaultCalendar() Calendar {
	return Calendar{
		Roster: Roster{
			{ID: "1", Name: "Laura and Igor", Emoji: "👫", Color: "rose"},
			{ID: "2", Name: "Oliver", Emoji: "👤", Color: "blue"},
			{ID: "3", Name: "Lidi", Emoji: "👩", Color: "emerald"},
		},
		Window: VacationWindow{
			Start: "2026-07-25",
			End:   "2026-08-05",
		},
		Cats: []string{"Max", "Luna"},
	}
}

// Participant はIDに一致する参加者を返す。
func (c Calendar) Participant(id string) (Participant, bool) {
	return c.Roster.Find(id)
}

// TotalDays は休暇期間の日数を返す。
func (c Calendar) TotalDays() int {
	return c.Window.TotalDays()
}

var calendarValidate = newCalendarValidate()

func newCalendarValidate() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("datekey", validateDateKey); err != nil {
		panic(fmt.Sprintf("register datekey validation: %v", err))
	}
	return v
}

func validateDateKey(fl validator.FieldLevel) bool {
	return DateKey(fl.Field().String()).Valid()
}

// ValidationError は設定項目1件分の検証エラー。
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors は複数の検証エラーをまとめたもの。
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Validate は名簿と期間の不変条件を検証する。
// 参加者は3名でIDが一意かつ空でないこと、期間の日付が正規形式で Start <= End であること。
func (c Calendar) Validate() error {
	if err := calendarValidate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	if c.Window.End.Time().Before(c.Window.Start.Time()) {
		return ValidationErrors{{
			Field:   "window",
			Message: fmt.Sprintf("end %s is before start %s", c.Window.End, c.Window.Start),
		}}
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		message := err.Error()
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "len":
			message = fmt.Sprintf("%s must contain exactly %s participants", err.Field(), err.Param())
		case "unique":
			message = fmt.Sprintf("%s must have unique %s values", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
		case "datekey":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		}
		out = append(out, ValidationError{
			Field:   err.Namespace(),
			Message: message,
		})
	}
	return out
}
