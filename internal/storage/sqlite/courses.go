package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/golf-qa/backend/internal/storage/models"
	"github.com/golf-qa/backend/pkg/logger"
)

func (c *Client) UpsertCourse(ctx context.Context, course *models.Course) error {
	query := `
		INSERT INTO golf_courses (name, city, state, zip_code, country, slope_min, slope_max,
			rating_min, rating_max, tee_details, phone, website, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, city, state) DO UPDATE SET
			zip_code = excluded.zip_code,
			country = excluded.country,
			slope_min = excluded.slope_min,
			slope_max = excluded.slope_max,
			rating_min = excluded.rating_min,
			rating_max = excluded.rating_max,
			tee_details = excluded.tee_details,
			phone = excluded.phone,
			website = excluded.website,
			last_updated = excluded.last_updated
	`

	tees := course.Tees
	if tees == nil {
		tees = map[string]models.TeeDetail{}
	}
	teesJSON, err := json.Marshal(tees)
	if err != nil {
		return fmt.Errorf("failed to marshal tee details: %w", err)
	}

	country := course.Country
	if country == "" {
		country = "USA"
	}

	_, err = c.db.ExecContext(
		ctx,
		query,
		course.Name,
		course.City,
		course.State,
		course.ZipCode,
		country,
		course.SlopeMin,
		course.SlopeMax,
		course.RatingMin,
		course.RatingMax,
		string(teesJSON),
		course.Phone,
		course.Website,
		toUnix(course.LastUpdated),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert course: %w", err)
	}

	logger.Debug("Course upserted", zap.String("name", course.Name), zap.String("state", course.State))
	return nil
}

func (c *Client) SearchCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var conditions []string
	var args []interface{}

	if filter.Name != "" {
		conditions = append(conditions, "name LIKE ?")
		args = append(args, "%"+filter.Name+"%")
	}
	if filter.City != "" {
		conditions = append(conditions, "city LIKE ?")
		args = append(args, "%"+filter.City+"%")
	}
	if filter.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, strings.ToUpper(filter.State))
	}
	if filter.ZipCode != "" {
		conditions = append(conditions, "zip_code = ?")
		args = append(args, filter.ZipCode)
	}
	if filter.MinSlope > 0 {
		conditions = append(conditions, "slope_max >= ?")
		args = append(args, filter.MinSlope)
	}
	if filter.MaxSlope > 0 {
		conditions = append(conditions, "slope_min <= ?")
		args = append(args, filter.MaxSlope)
	}
	if filter.MinRating > 0 {
		conditions = append(conditions, "rating_max >= ?")
		args = append(args, filter.MinRating)
	}
	if filter.MaxRating > 0 {
		conditions = append(conditions, "rating_min <= ?")
		args = append(args, filter.MaxRating)
	}

	query := `
		SELECT id, name, city, state, zip_code, country, slope_min, slope_max, rating_min,
			rating_max, tee_details, phone, website, last_updated
		FROM golf_courses`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY name"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	defer rows.Close()

	courses := make([]models.Course, 0)
	for rows.Next() {
		var course models.Course
		var teesJSON string
		var updated int64

		err := rows.Scan(
			&course.ID,
			&course.Name,
			&course.City,
			&course.State,
			&course.ZipCode,
			&course.Country,
			&course.SlopeMin,
			&course.SlopeMax,
			&course.RatingMin,
			&course.RatingMax,
			&teesJSON,
			&course.Phone,
			&course.Website,
			&updated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		decodeJSON(teesJSON, &course.Tees)
		course.LastUpdated = fromUnix(updated)
		courses = append(courses, course)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}

	return courses, nil
}

func (c *Client) CountCourses(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM golf_courses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}
