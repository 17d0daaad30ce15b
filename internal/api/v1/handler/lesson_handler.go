package handler

import (
	"encoding/json"
	"net/http"

	"lms/internal/api/v1/dto"
	"lms/internal/model"
	"lms/internal/paging"
	"lms/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// LessonHandler handles lesson endpoints under a course
type LessonHandler struct {
	catalog  service.CourseCatalog
	validate *validator.Validate
	policy   ReadPolicy
	logger   zerolog.Logger
}

func NewLessonHandler(catalog service.CourseCatalog, validate *validator.Validate, policy ReadPolicy, logger zerolog.Logger) *LessonHandler {
	return &LessonHandler{
		catalog:  catalog,
		validate: validate,
		policy:   policy,
		logger:   logger.With().Str("handler", "LessonHandler").Logger(),
	}
}

// RegisterRoutes mounts lesson routes
func (h *LessonHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Get("/user/{userId}/course/{courseId}/lesson", h.listLessons)
	r.Get("/user/{userId}/course/{courseId}/lesson/{lessonId}", h.getLesson)
	r.With(authMw).Post("/user/{userId}/course/{courseId}/lesson", h.createLesson)
}

// listLessons godoc
// @Summary List lessons
// @Description Lists a course's lessons, newest first. Results come from the search index and may lag recent writes.
// @Tags lessons
// @Produce json
// @Param userId path string true "Teacher ID"
// @Param courseId path string true "Course ID"
// @Param page query int false "Page number, 1-based"
// @Success 200 {object} dto.LessonListResponseDTO
// @Failure 503 {string} string "Search index unavailable"
// @Router /user/{userId}/course/{courseId}/lesson [get]
func (h *LessonHandler) listLessons(w http.ResponseWriter, r *http.Request) {
	page := paging.Parse(r.URL.Query().Get("page"))
	res, err := h.catalog.ListLessons(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "courseId"), page)
	if err != nil && !h.policy.degraded(h.logger, err) {
		writeError(w, h.logger, "Failed to list lessons", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewLessonListResponse(res.Lessons, res.Total, page))
}

// getLesson godoc
// @Summary Get a lesson
// @Tags lessons
// @Produce json
// @Param userId path string true "Teacher ID"
// @Param courseId path string true "Course ID"
// @Param lessonId path string true "Lesson ID"
// @Success 200 {object} dto.LessonResponseDTO
// @Failure 404 {string} string "Lesson not found"
// @Router /user/{userId}/course/{courseId}/lesson/{lessonId} [get]
func (h *LessonHandler) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.catalog.GetLesson(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "courseId"), chi.URLParam(r, "lessonId"))
	if err != nil {
		writeError(w, h.logger, "Failed to retrieve lesson", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewLessonResponse(lesson))
}

// createLesson godoc
// @Summary Create a lesson
// @Description Adds a lesson to a course owned by the authenticated user.
// @Tags lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Teacher ID, must match the token subject"
// @Param courseId path string true "Course ID"
// @Param lesson body dto.LessonCreateDTO true "Lesson creation request"
// @Success 201 {object} dto.LessonResponseDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 401 {string} string "Unauthorized"
// @Failure 403 {string} string "Forbidden"
// @Failure 404 {string} string "Course not found"
// @Router /user/{userId}/course/{courseId}/lesson [post]
func (h *LessonHandler) createLesson(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !requireOwner(w, r, userID) {
		return
	}
	var req dto.LessonCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.catalog.CreateLesson(r.Context(), model.Lesson{
		CourseID:  chi.URLParam(r, "courseId"),
		TeacherID: userID,
		Title:     req.Title,
		Content:   req.Content,
	})
	if err != nil {
		writeError(w, h.logger, "Failed to create lesson", err)
		return
	}
	h.policy.markWrite(w)
	writeJSON(w, http.StatusCreated, dto.NewLessonResponse(created))
}
