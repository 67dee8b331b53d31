package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/studentbulle/internal/apperrors"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

const studentColumns = `student_id, name, department, email, phone, created_at, updated_at`

func (s *BaseStore) CreateStudent(ctx context.Context, student *models.Student) (*models.Student, error) {
	rec := *student
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkStudentConflicts(ctx, tx, rec.StudentID, rec.Email, ""); err != nil {
			return err
		}

		query := s.Converter(`
			INSERT INTO students (student_id, name, department, email, phone, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		_, err := tx.ExecContext(ctx, query,
			rec.StudentID, rec.Name, rec.Department, rec.Email, rec.Phone, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			if s.uniqueViolation(err) {
				return apperrors.NewValidationError("student_id", "student id or email already exists")
			}
			return fmt.Errorf("failed to insert student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BaseStore) GetStudent(ctx context.Context, studentID string) (*models.Student, error) {
	var rec models.Student
	query := s.Converter(`SELECT ` + studentColumns + ` FROM students WHERE student_id = ?`)
	err := s.DB.GetContext(ctx, &rec, query, strings.TrimSpace(studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("student %q", studentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &rec, nil
}

// UpdateStudent overwrites the fields set in update. Setting StudentID renames
// the record.
func (s *BaseStore) UpdateStudent(ctx context.Context, studentID string, update models.StudentUpdate) (*models.Student, error) {
	if update.IsEmpty() {
		return nil, apperrors.NewValidationError("body", "no fields to update")
	}
	studentID = strings.TrimSpace(studentID)

	var rec models.Student
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := s.Converter(`SELECT ` + studentColumns + ` FROM students WHERE student_id = ?`)
		if err := tx.GetContext(ctx, &rec, query, studentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("student %q", studentID)
			}
			return fmt.Errorf("failed to load student: %w", err)
		}

		update.Apply(&rec)
		rec.Normalize()
		if err := rec.Validate(); err != nil {
			return err
		}
		if err := s.checkStudentConflicts(ctx, tx, rec.StudentID, rec.Email, studentID); err != nil {
			return err
		}

		rec.UpdatedAt = s.now().Unix()
		query = s.Converter(`
			UPDATE students
			SET student_id = ?, name = ?, department = ?, email = ?, phone = ?, updated_at = ?
			WHERE student_id = ?`)
		_, err := tx.ExecContext(ctx, query,
			rec.StudentID, rec.Name, rec.Department, rec.Email, rec.Phone, rec.UpdatedAt, studentID)
		if err != nil {
			if s.uniqueViolation(err) {
				return apperrors.NewValidationError("student_id", "student id or email already exists")
			}
			return fmt.Errorf("failed to update student: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *BaseStore) DeleteStudent(ctx context.Context, studentID string) error {
	query := s.Converter(`DELETE FROM students WHERE student_id = ?`)
	res, err := s.DB.ExecContext(ctx, query, strings.TrimSpace(studentID))
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("student %q", studentID)
	}
	return nil
}

// SearchStudents does a case-insensitive substring match of query against the
// columns of field. An empty query returns every student.
func (s *BaseStore) SearchStudents(ctx context.Context, query string, field models.SearchField) ([]models.Student, error) {
	cols, err := field.Columns()
	if err != nil {
		return nil, err
	}

	sqlQuery := `SELECT ` + studentColumns + ` FROM students`
	var args []any
	if term := strings.TrimSpace(query); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		conds := make([]string, 0, len(cols))
		for _, col := range cols {
			conds = append(conds, fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, s.lower(col), s.lower("?")))
			args = append(args, pattern)
		}
		sqlQuery += ` WHERE ` + strings.Join(conds, " OR ")
	}
	sqlQuery += ` ORDER BY student_id ASC`

	students := []models.Student{}
	if err := s.DB.SelectContext(ctx, &students, s.Converter(sqlQuery), args...); err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}
	return students, nil
}

// checkStudentConflicts reports a studentID or email already held by a row
// other than currentID. currentID is empty when creating.
func (s *BaseStore) checkStudentConflicts(ctx context.Context, tx *sqlx.Tx, studentID, email, currentID string) error {
	verr := &apperrors.ValidationError{}

	if studentID != currentID {
		var n int
		query := s.Converter(`SELECT COUNT(*) FROM students WHERE student_id = ?`)
		if err := tx.GetContext(ctx, &n, query, studentID); err != nil {
			return fmt.Errorf("failed to check student id: %w", err)
		}
		if n > 0 {
			verr.Add("student_id", "student id already exists")
		}
	}

	var n int
	query := s.Converter(fmt.Sprintf(`SELECT COUNT(*) FROM students WHERE %s = %s AND student_id <> ?`,
		s.lower("email"), s.lower("?")))
	if err := tx.GetContext(ctx, &n, query, email, currentID); err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if n > 0 {
		verr.Add("email", "email already in use")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
