package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shrimpsizemoose/studentbulle/internal/app"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
)

type StudentHandler struct {
	service *app.Service
}

func NewStudentHandler(service *app.Service) *StudentHandler {
	return &StudentHandler{
		service: service,
	}
}

type studentListResponse struct {
	Students []models.Student `json:"students"`
	Count    int              `json:"count"`
}

func (h *StudentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	students, err := h.service.SearchStudents(r.Context(), SessionFrom(r.Context()), query.Get("q"), query.Get("field"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, studentListResponse{
		Students: students,
		Count:    len(students),
	})
}

func (h *StudentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var student models.Student
	if err := decodeJSON(w, r, &student); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.service.CreateStudent(r.Context(), SessionFrom(r.Context()), &student)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/students/"+created.StudentID)
	respondJSON(w, http.StatusCreated, created)
}

func (h *StudentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	student, err := h.service.GetStudent(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "studentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, student)
}

func (h *StudentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	var update models.StudentUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.service.UpdateStudent(r.Context(), SessionFrom(r.Context()), studentID, update)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/students/"+updated.StudentID)
	respondJSON(w, http.StatusOK, updated)
}

func (h *StudentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteStudent(r.Context(), SessionFrom(r.Context()), chi.URLParam(r, "studentID")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
