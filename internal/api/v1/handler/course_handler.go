package handler

import (
	"encoding/json"
	"net/http"

	"lms/internal/api/v1/dto"
	"lms/internal/idclock"
	"lms/internal/paging"
	"lms/internal/search"
	"lms/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CourseHandler handles course, member and search endpoints
type CourseHandler struct {
	catalog  service.CourseCatalog
	validate *validator.Validate
	policy   ReadPolicy
	logger   zerolog.Logger
}

func NewCourseHandler(catalog service.CourseCatalog, validate *validator.Validate, policy ReadPolicy, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		catalog:  catalog,
		validate: validate,
		policy:   policy,
		logger:   logger.With().Str("handler", "CourseHandler").Logger(),
	}
}

// RegisterRoutes mounts course routes
func (h *CourseHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Get("/search", h.searchCourses)
	r.Get("/user/{userId}/course", h.listTeacherCourses)
	r.Get("/user/{userId}/enrolled", h.listEnrolledCourses)
	r.Get("/user/{userId}/course/{courseId}", h.getCourse)
	r.Get("/user/{userId}/course/{courseId}/member", h.listMembers)
	r.With(authMw).Post("/user/{userId}/course", h.createCourse)
	r.With(authMw).Put("/user/{userId}/course/{courseId}", h.updateCourse)
}

// searchCourses godoc
// @Summary Search courses
// @Description Free-text and topic search over active courses. Results come from the search index and may lag recent writes.
// @Tags courses
// @Produce json
// @Param query query string false "Free text matched against course name and description"
// @Param topics query string false "JSON array of topics, e.g. [\"go\",\"databases\"]"
// @Param page query int false "Page number, 1-based"
// @Success 200 {object} dto.CourseListResponseDTO
// @Failure 503 {string} string "Search index unavailable"
// @Router /search [get]
func (h *CourseHandler) searchCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := paging.Parse(q.Get("page"))
	query := search.CourseQuery{Text: q.Get("query"), Topics: paging.ParseTopics(q.Get("topics"))}
	res, err := h.catalog.SearchCourses(r.Context(), query, page, projection(r))
	h.writeCoursePage(w, res, page, err)
}

// listTeacherCourses godoc
// @Summary List a teacher's courses
// @Description Lists courses owned by the user. Results come from the search index and may lag recent writes.
// @Tags courses
// @Produce json
// @Param userId path string true "Teacher ID"
// @Param page query int false "Page number, 1-based"
// @Success 200 {object} dto.CourseListResponseDTO
// @Failure 503 {string} string "Search index unavailable"
// @Router /user/{userId}/course [get]
func (h *CourseHandler) listTeacherCourses(w http.ResponseWriter, r *http.Request) {
	page := paging.Parse(r.URL.Query().Get("page"))
	res, err := h.catalog.FindCoursesByTeacher(r.Context(), chi.URLParam(r, "userId"), page, projection(r))
	h.writeCoursePage(w, res, page, err)
}

// listEnrolledCourses godoc
// @Summary List a student's courses
// @Description Lists courses whose members include the user.
// @Tags courses
// @Produce json
// @Param userId path string true "Student ID"
// @Param page query int false "Page number, 1-based"
// @Success 200 {object} dto.CourseListResponseDTO
// @Failure 503 {string} string "Search index unavailable"
// @Router /user/{userId}/enrolled [get]
func (h *CourseHandler) listEnrolledCourses(w http.ResponseWriter, r *http.Request) {
	page := paging.Parse(r.URL.Query().Get("page"))
	res, err := h.catalog.FindCoursesByStudent(r.Context(), chi.URLParam(r, "userId"), page, projection(r))
	h.writeCoursePage(w, res, page, err)
}

func (h *CourseHandler) writeCoursePage(w http.ResponseWriter, res service.CoursePage, page int, err error) {
	if err != nil && !h.policy.degraded(h.logger, err) {
		writeError(w, h.logger, "Failed to list courses", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewCourseListResponse(res.Courses, res.Total, page))
}

// getCourse godoc
// @Summary Get a course
// @Description Retrieves a course by teacher and course id. Visible immediately after it is written.
// @Tags courses
// @Produce json
// @Param userId path string true "Teacher ID"
// @Param courseId path string true "Course ID"
// @Param includes query string false "Comma separated fields to return"
// @Param excludes query string false "Comma separated fields to omit"
// @Success 200 {object} dto.CourseResponseDTO
// @Failure 404 {string} string "Course not found"
// @Failure 503 {string} string "Store and index unavailable"
// @Router /user/{userId}/course/{courseId} [get]
func (h *CourseHandler) getCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.catalog.GetCourse(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "courseId"), projection(r))
	if err != nil {
		writeError(w, h.logger, "Failed to retrieve course", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewCourseResponse(course))
}

// createCourse godoc
// @Summary Create a new course
// @Description Creates a course owned by the authenticated user with a freshly issued id.
// @Tags courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Teacher ID, must match the token subject"
// @Param course body dto.CourseCreateDTO true "Course creation request"
// @Success 201 {object} dto.CourseResponseDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 401 {string} string "Unauthorized"
// @Failure 403 {string} string "Forbidden"
// @Failure 503 {string} string "Store unavailable"
// @Router /user/{userId}/course [post]
func (h *CourseHandler) createCourse(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !requireOwner(w, r, userID) {
		return
	}
	var req dto.CourseCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	created, err := h.catalog.CreateCourse(r.Context(), req.Course(userID))
	if err != nil {
		writeError(w, h.logger, "Failed to create course", err)
		return
	}
	h.policy.markWrite(w)
	writeJSON(w, http.StatusCreated, dto.NewCourseResponse(created))
}

// updateCourse godoc
// @Summary Create or replace a course
// @Description Writes the fields present in the body (or those named in fields) to the course with the given id. With if_not_exists the write fails with 409 when the course already exists.
// @Tags courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Teacher ID, must match the token subject"
// @Param courseId path string true "Course ID, a time-ordered UUID"
// @Param course body dto.CourseUpdateDTO true "Course update request"
// @Success 200 {object} dto.CourseWriteResponseDTO
// @Failure 400 {string} string "Invalid JSON payload, validation failed or malformed id"
// @Failure 401 {string} string "Unauthorized"
// @Failure 403 {string} string "Forbidden"
// @Failure 409 {string} string "Course already exists"
// @Failure 503 {string} string "Store unavailable"
// @Router /user/{userId}/course/{courseId} [put]
func (h *CourseHandler) updateCourse(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if !requireOwner(w, r, userID) {
		return
	}
	var req dto.CourseUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	fields := req.WrittenFields()
	if len(fields) == 0 {
		http.Error(w, "Validation failed: no fields to update", http.StatusBadRequest)
		return
	}

	opts := []service.UpsertOption{service.WithFields(fields...)}
	if !req.IfNotExists {
		opts = append(opts, service.Replace())
	}
	if req.TTLSeconds > 0 {
		opts = append(opts, service.WithTTL(req.TTL()))
	}
	course := req.Course(userID, chi.URLParam(r, "courseId"))
	if err := h.catalog.UpsertCourse(r.Context(), course, opts...); err != nil {
		writeError(w, h.logger, "Failed to update course", err)
		return
	}
	h.policy.markWrite(w)
	writeJSON(w, http.StatusOK, dto.CourseWriteResponseDTO{
		CourseID:  idclock.Canonical(course.ID),
		TeacherID: idclock.Canonical(course.TeacherID),
		Fields:    fields,
	})
}

// listMembers godoc
// @Summary List course members
// @Description Lists the course's member ids, sorted, one page at a time.
// @Tags courses
// @Produce json
// @Param userId path string true "Teacher ID"
// @Param courseId path string true "Course ID"
// @Param page query int false "Page number, 1-based"
// @Success 200 {object} dto.MemberListResponseDTO
// @Failure 404 {string} string "Course not found"
// @Router /user/{userId}/course/{courseId}/member [get]
func (h *CourseHandler) listMembers(w http.ResponseWriter, r *http.Request) {
	page := paging.Parse(r.URL.Query().Get("page"))
	res, err := h.catalog.ListMembers(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "courseId"), page)
	if err != nil {
		writeError(w, h.logger, "Failed to list members", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MemberListResponseDTO{
		Members:    res.Members,
		Total:      res.Total,
		Pagination: paging.NewControls(page, res.Total),
	})
}
