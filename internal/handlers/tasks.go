package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TasksHandler lists notification tasks for operator inspection
type TasksHandler struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewTasksHandler creates a new tasks handler with dependencies
func NewTasksHandler(db *gorm.DB, logger *zap.Logger) *TasksHandler {
	return &TasksHandler{
		DB:     db,
		Logger: logger,
	}
}

// TasksResponse represents the response structure for GET /tasks
type TasksResponse struct {
	Tasks   []TaskDTO `json:"tasks"`
	HasMore bool      `json:"has_more"`
}

// TaskDTO represents a single notification task in the response
type TaskDTO struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	StatusCode *int   `json:"status_code"` // latest delivery response, if any
	EventType  string `json:"event_type"`
	Attempts   int    `json:"attempts"`
	Timestamp  string `json:"timestamp"` // UTC ISO 8601 format
}

// GetTasks handles GET /tasks
// Query parameters:
//   - business_id (required)
//   - limit (optional, default 25)
//   - offset (optional, default 0)
func (h *TasksHandler) GetTasks(c *fiber.Ctx) error {
	businessID := c.Query("business_id")
	if businessID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "business_id query parameter is required",
		})
	}
	if _, err := uuid.Parse(businessID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "business_id must be a valid UUID",
		})
	}

	limit := 25
	if limitStr := c.Query("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsedLimit
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		parsedOffset, err := strconv.Atoi(offsetStr)
		if err != nil || parsedOffset < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "offset must be a non-negative integer",
			})
		}
		offset = parsedOffset
	}

	type taskRow struct {
		ID        uuid.UUID
		EventType string
		Status    string
		Attempts  int
		CreatedAt time.Time
	}

	var tasks []taskRow

	query := h.DB.Table("notification_tasks").
		Select("id, event_type, status, attempts, created_at").
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		Limit(limit + 1). // Fetch one extra to determine has_more
		Offset(offset)

	if err := query.Scan(&tasks).Error; err != nil {
		h.Logger.Error("Failed to query notification tasks",
			zap.String("business_id", businessID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tasks",
		})
	}

	if len(tasks) == 0 {
		return c.JSON(TasksResponse{Tasks: []TaskDTO{}, HasMore: false})
	}

	hasMore := len(tasks) > limit
	if hasMore {
		tasks = tasks[:limit]
	}

	taskIDs := make([]uuid.UUID, len(tasks))
	for i, task := range tasks {
		taskIDs[i] = task.ID
	}

	// Latest delivery response per task
	type logRow struct {
		TaskID         uuid.UUID
		ResponseStatus int
	}

	var latest []logRow
	subquery := h.DB.Table("delivery_logs").
		Select("task_id, MAX(id) as max_id").
		Where("task_id IN ?", taskIDs).
		Group("task_id")

	if err := h.DB.Table("delivery_logs AS dl").
		Select("dl.task_id, dl.response_status").
		Joins("INNER JOIN (?) AS l ON dl.task_id = l.task_id AND dl.id = l.max_id", subquery).
		Scan(&latest).Error; err != nil {
		// Continue without response codes, the task list is still useful
		h.Logger.Warn("Failed to fetch delivery logs, continuing without response status",
			zap.Error(err),
		)
	}

	statusMap := make(map[uuid.UUID]int)
	for _, row := range latest {
		statusMap[row.TaskID] = row.ResponseStatus
	}

	taskDTOs := make([]TaskDTO, 0, len(tasks))
	for _, task := range tasks {
		dto := TaskDTO{
			ID:        task.ID.String(),
			Status:    task.Status,
			EventType: task.EventType,
			Attempts:  task.Attempts,
			Timestamp: task.CreatedAt.UTC().Format(time.RFC3339),
		}
		if code, ok := statusMap[task.ID]; ok {
			dto.StatusCode = &code
		}
		taskDTOs = append(taskDTOs, dto)
	}

	return c.JSON(TasksResponse{Tasks: taskDTOs, HasMore: hasMore})
}
