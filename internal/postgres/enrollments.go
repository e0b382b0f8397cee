package postgres

import "context"

func (r *Repository) IsEnrolled(ctx context.Context, classID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments
			WHERE class_id = $1 AND user_id = $2
		)`, classID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
