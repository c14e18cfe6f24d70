package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/golf-qa/backend/internal/scheduler"
	"github.com/golf-qa/backend/internal/storage/models"
)

type CourseStore interface {
	SearchCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
}

// DataHandler serves course lookups, data freshness and manual updates.
type DataHandler struct {
	updater *scheduler.Updater
	courses CourseStore
}

func NewDataHandler(updater *scheduler.Updater, courses CourseStore) *DataHandler {
	return &DataHandler{
		updater: updater,
		courses: courses,
	}
}

type courseQuery struct {
	Name      string  `query:"name" validate:"max=200"`
	City      string  `query:"city" validate:"max=100"`
	State     string  `query:"state" validate:"omitempty,len=2,alpha"`
	ZipCode   string  `query:"zip" validate:"omitempty,numeric,len=5"`
	MinSlope  int     `query:"min_slope" validate:"omitempty,min=55,max=155"`
	MaxSlope  int     `query:"max_slope" validate:"omitempty,min=55,max=155"`
	MinRating float64 `query:"min_rating" validate:"omitempty,min=0,max=90"`
	MaxRating float64 `query:"max_rating" validate:"omitempty,min=0,max=90"`
	Limit     int     `query:"limit" validate:"omitempty,min=1,max=500"`
}

func (h *DataHandler) Courses(c *fiber.Ctx) error {
	var q courseQuery
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid query parameters",
		})
	}
	if err := validate.Struct(q); err != nil {
		return validationError(c, err)
	}

	courses, err := h.courses.SearchCourses(c.Context(), models.CourseFilter{
		Name:      q.Name,
		City:      q.City,
		State:     q.State,
		ZipCode:   q.ZipCode,
		MinSlope:  q.MinSlope,
		MaxSlope:  q.MaxSlope,
		MinRating: q.MinRating,
		MaxRating: q.MaxRating,
		Limit:     q.Limit,
	})
	if err != nil {
		return respondError(c, err, "Failed to search courses")
	}

	out := make([]fiber.Map, len(courses))
	for i, course := range courses {
		out[i] = fiber.Map{
			"id":           course.ID,
			"name":         course.Name,
			"city":         course.City,
			"state":        course.State,
			"zip_code":     course.ZipCode,
			"country":      course.Country,
			"slope_min":    course.SlopeMin,
			"slope_max":    course.SlopeMax,
			"rating_min":   course.RatingMin,
			"rating_max":   course.RatingMax,
			"tees":         course.Tees,
			"phone":        course.Phone,
			"website":      course.Website,
			"last_updated": course.LastUpdated,
		}
	}

	return c.JSON(fiber.Map{
		"courses": out,
		"count":   len(out),
	})
}

func (h *DataHandler) Freshness(c *fiber.Ctx) error {
	statuses, err := h.updater.Status(c.Context(), time.Now())
	if err != nil {
		return respondError(c, err, "Failed to load data freshness")
	}

	out := make([]fiber.Map, len(statuses))
	for i, s := range statuses {
		out[i] = fiber.Map{
			"data_type":       s.DataType,
			"level":           s.Level,
			"color":           s.Color,
			"age_days":        s.AgeDays,
			"message":         s.Message,
			"status":          s.Record.Status,
			"last_attempt":    optionalTime(s.Record.LastAttempt),
			"last_success":    optionalTime(s.Record.LastSuccess),
			"next_scheduled":  optionalTime(s.Record.NextScheduled),
			"records_updated": s.Record.RecordsUpdated,
			"error_message":   s.Record.ErrorMessage,
		}
	}

	return c.JSON(fiber.Map{
		"data": out,
	})
}

// TriggerUpdate runs an update synchronously, exactly like a scheduled firing.
func (h *DataHandler) TriggerUpdate(c *fiber.Ctx) error {
	result := h.updater.RunOnce(c.Context())
	if result.Error == scheduler.ErrAlreadyRunning.Error() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "An update is already running",
		})
	}

	return c.JSON(fiber.Map{
		"success":            result.Success,
		"passages_updated":   result.PassagesUpdated,
		"passages_unchanged": result.PassagesUnchanged,
		"passages_removed":   result.PassagesRemoved,
		"passages_failed":    result.PassagesFailed,
		"courses_updated":    result.CoursesUpdated,
		"error":              result.Error,
		"duration_ms":        result.Duration.Milliseconds(),
		"next_update":        result.NextUpdate,
	})
}

func optionalTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
