package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"research-grant-api/models"
	"research-grant-api/utils"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateForm runs the struct tags and converts failures into a ValidationError.
func validateForm(form interface{}) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: map[string]string{"form": err.Error()}}
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeFieldError(fe)
	}
	return &ValidationError{Fields: fields}
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

type CreateCallForm struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

func (f *CreateCallForm) validate() error {
	f.Title = utils.SanitizeInput(f.Title)
	f.Description = utils.SanitizeInput(f.Description)
	return validateForm(f)
}

type SubmitProposalForm struct {
	Title        string           `json:"title" validate:"required,max=255"`
	Abstract     string           `json:"abstract" validate:"required"`
	Methodology  string           `json:"methodology" validate:"required"`
	BudgetAmount *decimal.Decimal `json:"budget_amount" validate:"required"`
}

func (f *SubmitProposalForm) validate() error {
	f.Title = utils.SanitizeInput(f.Title)
	f.Abstract = utils.SanitizeInput(f.Abstract)
	f.Methodology = utils.SanitizeInput(f.Methodology)
	if err := validateForm(f); err != nil {
		return err
	}
	if f.BudgetAmount.IsNegative() {
		return fieldError("budget_amount", "must not be negative")
	}
	return checkMoney("budget_amount", *f.BudgetAmount)
}

type AssignReviewerForm struct {
	ReviewerID string `json:"reviewer_id" validate:"required"`
}

func (f *AssignReviewerForm) validate() error {
	f.ReviewerID = utils.SanitizeInput(f.ReviewerID)
	return validateForm(f)
}

// SubmitReviewForm carries a reviewer's score. Score bounds are inclusive.
type SubmitReviewForm struct {
	Score          *int                  `json:"score" validate:"required,min=0,max=100"`
	Recommendation models.Recommendation `json:"recommendation" validate:"required,oneof=approve reject revise"`
	Comments       string                `json:"comments" validate:"required"`
}

func (f *SubmitReviewForm) validate() error {
	f.Comments = utils.SanitizeInput(f.Comments)
	return validateForm(f)
}

type RequestBudgetForm struct {
	// RequestedAmount defaults to the proposal's budget_amount when omitted.
	RequestedAmount *decimal.Decimal `json:"requested_amount"`
	Justification   string           `json:"justification" validate:"required"`
}

func (f *RequestBudgetForm) validate() error {
	f.Justification = utils.SanitizeInput(f.Justification)
	if err := validateForm(f); err != nil {
		return err
	}
	if f.RequestedAmount == nil {
		return nil
	}
	if !f.RequestedAmount.IsPositive() {
		return fieldError("requested_amount", "must be greater than 0")
	}
	return checkMoney("requested_amount", *f.RequestedAmount)
}

// maxMoney is the first amount a DECIMAL(14,2) column cannot hold.
var maxMoney = decimal.New(1, 12)

// checkMoney rejects amounts the money columns would round or overflow.
func checkMoney(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return fieldError(field, "must have at most 2 decimal places")
	}
	if amount.Abs().GreaterThanOrEqual(maxMoney) {
		return fieldError(field, "must be less than 1000000000000")
	}
	return nil
}

// DecisionForm is the director's verdict on a proposal under review.
type DecisionForm struct {
	Decision models.ProposalStatus `json:"decision" validate:"required,oneof=approved rejected"`
}

// BudgetDecisionForm is the vice-president's verdict on a pending budget request.
// ProposalID is optional; when present it must match the request's proposal.
type BudgetDecisionForm struct {
	Decision   models.BudgetStatus `json:"decision" validate:"required,oneof=approved rejected"`
	ProposalID string              `json:"proposal_id"`
}

type SignUpForm struct {
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"required,min=8"`
	FullName   string      `json:"full_name" validate:"required,max=255"`
	Role       models.Role `json:"role" validate:"omitempty,oneof=researcher reviewer coordinator director vice_president"`
	Department *string     `json:"department"`
}

func (f *SignUpForm) validate() error {
	f.Email = utils.NormalizeEmail(f.Email)
	f.FullName = utils.SanitizeInput(f.FullName)
	if f.Role == "" {
		f.Role = models.RoleResearcher
	}
	if f.Department != nil {
		d := utils.SanitizeInput(*f.Department)
		if d == "" {
			f.Department = nil
		} else {
			f.Department = &d
		}
	}
	if err := validateForm(f); err != nil {
		return err
	}
	if ok, msg := utils.ValidatePassword(f.Password); !ok {
		return fieldError("password", msg)
	}
	return nil
}
