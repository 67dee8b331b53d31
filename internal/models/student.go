package models

import (
	"strings"

	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
)

type Student struct {
	StudentID  string `db:"student_id" json:"student_id" validate:"required,student_id"`
	Name       string `db:"name" json:"name" validate:"required,max=120"`
	Department string `db:"department" json:"department" validate:"required,max=120"`
	Email      string `db:"email" json:"email" validate:"required,max=254,plausible_email"`
	Phone      string `db:"phone" json:"phone,omitempty" validate:"omitempty,phone"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
	UpdatedAt  int64  `db:"updated_at" json:"updated_at"`
}

// Normalize trims surrounding whitespace from every text field.
func (s *Student) Normalize() {
	s.StudentID = strings.TrimSpace(s.StudentID)
	s.Name = strings.TrimSpace(s.Name)
	s.Department = strings.TrimSpace(s.Department)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
}

func (s *Student) Validate() error {
	return ValidateStruct(s)
}

// StudentUpdate is a partial edit: nil fields are left untouched. A set
// StudentID renames the record.
type StudentUpdate struct {
	StudentID  *string `json:"student_id,omitempty"`
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

func (u StudentUpdate) IsEmpty() bool {
	return u.StudentID == nil && u.Name == nil && u.Department == nil && u.Email == nil && u.Phone == nil
}

// Apply copies the set fields of u onto s.
func (u StudentUpdate) Apply(s *Student) {
	if u.StudentID != nil {
		s.StudentID = *u.StudentID
	}
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Department != nil {
		s.Department = *u.Department
	}
	if u.Email != nil {
		s.Email = *u.Email
	}
	if u.Phone != nil {
		s.Phone = *u.Phone
	}
}

type SearchField string

const (
	SearchAll        SearchField = "all"
	SearchName       SearchField = "name"
	SearchStudentID  SearchField = "student_id"
	SearchDepartment SearchField = "department"
	SearchEmail      SearchField = "email"
)

var searchColumns = map[SearchField][]string{
	SearchAll:        {"name", "student_id", "department", "email"},
	SearchName:       {"name"},
	SearchStudentID:  {"student_id"},
	SearchDepartment: {"department"},
	SearchEmail:      {"email"},
}

// ParseSearchField maps a query parameter onto a SearchField; empty means all.
func ParseSearchField(raw string) (SearchField, error) {
	field := SearchField(strings.ToLower(strings.TrimSpace(raw)))
	if field == "" {
		return SearchAll, nil
	}
	if _, ok := searchColumns[field]; !ok {
		return "", apperrors.NewValidationError("field", "must be one of: name student_id department email all")
	}
	return field, nil
}

// Columns returns the column names a search on f matches against.
func (f SearchField) Columns() ([]string, error) {
	cols, ok := searchColumns[f]
	if !ok {
		return nil, apperrors.NewValidationError("field", "must be one of: name student_id department email all")
	}
	return cols, nil
}
