package web

import (
	"fmt"
	"net/http"

	"github.com/icza/linkauthn"
	"github.com/icza/linkauthn/internal/gradebook"
)

const (
	msgNoGradebookFmt = "You do not have the gradebook available for the course: %s"
	msgFetchFailed    = "Error fetching course details."
)

type myListPage struct {
	Email   string
	Courses []string
}

type scorePage struct {
	Course  string
	Message string
	Sheet   *gradebook.ScoreSheet
}

// handleMyList lists the courses of the logged in student.
func (s *Server) handleMyList(w http.ResponseWriter, r *http.Request) {
	id, _ := linkauthn.IdentityFromContext(r.Context())

	courses, err := s.courses.Courses(r.Context(), id.UID)
	if err != nil {
		s.log(r).WithError(err).WithField("uid", id.UID).Error("Failed to list courses")
		s.render(w, r, http.StatusInternalServerError, "getscore.html", scorePage{Message: msgFetchFailed})
		return
	}

	s.render(w, r, http.StatusOK, "mylist.html", myListPage{Email: id.Email, Courses: courses})
}

// handleGetScore shows the scores of the logged in student in a course.
func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	id, _ := linkauthn.IdentityFromContext(r.Context())
	course := r.URL.Query().Get("course")

	records, err := s.courses.Records(r.Context(), id.UID, course)
	if err != nil {
		s.log(r).WithError(err).WithField("uid", id.UID).Error("Failed to query course records")
		s.render(w, r, http.StatusInternalServerError, "getscore.html", scorePage{Course: course, Message: msgFetchFailed})
		return
	}
	if len(records) == 0 {
		s.render(w, r, http.StatusOK, "getscore.html", scorePage{
			Course:  course,
			Message: fmt.Sprintf(msgNoGradebookFmt, course),
		})
		return
	}

	sheet, err := gradebook.NewScoreSheet(course, records)
	if err != nil {
		s.log(r).WithError(err).WithField("uid", id.UID).Error("Invalid course records")
		s.render(w, r, http.StatusInternalServerError, "getscore.html", scorePage{Course: course, Message: msgFetchFailed})
		return
	}

	s.render(w, r, http.StatusOK, "getscore.html", scorePage{Course: course, Sheet: sheet})
}
