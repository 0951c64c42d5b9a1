package apitest

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// Assessment is the wire shape of an assessment
type Assessment struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Language         string    `json:"language"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Invitation is the wire shape of a candidate invitation
type Invitation struct {
	ID             string    `json:"id"`
	AssessmentID   string    `json:"assessment_id"`
	CandidateEmail string    `json:"candidate_email"`
	Message        string    `json:"message,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateAssessmentRequest represents the assessment creation request
type CreateAssessmentRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Language         string `json:"language" binding:"required"`
	TimeLimitMinutes int    `json:"time_limit_minutes" binding:"min=0"`
}

// CreateInvitationRequest represents the invitation request
type CreateInvitationRequest struct {
	CandidateEmail string `json:"candidate_email" binding:"required,email"`
	Message        string `json:"message"`
}

func (s *Server) listAssessments(c *gin.Context) {
	claims, _ := GetSession(c)

	s.mu.Lock()
	result := make([]*Assessment, 0, len(s.assessments))
	for _, a := range s.assessments {
		if a.CreatedBy == claims.UserID {
			result = append(result, a)
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	c.JSON(http.StatusOK, result)
}

func (s *Server) getAssessment(c *gin.Context) {
	s.mu.Lock()
	a, ok := s.assessments[c.Param("id")]
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
		return
	}

	c.JSON(http.StatusOK, a)
}

func (s *Server) createAssessment(c *gin.Context) {
	var req CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, _ := GetSession(c)
	a := &Assessment{
		ID:               ulid.Make().String(),
		Title:            req.Title,
		Description:      req.Description,
		Language:         req.Language,
		TimeLimitMinutes: req.TimeLimitMinutes,
		CreatedBy:        claims.UserID,
		CreatedAt:        time.Now().UTC(),
	}

	s.mu.Lock()
	s.assessments[a.ID] = a
	s.mu.Unlock()

	c.JSON(http.StatusCreated, a)
}

func (s *Server) deleteAssessment(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assessments[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
		return
	}

	delete(s.assessments, id)
	delete(s.invitations, id)
	c.Status(http.StatusNoContent)
}

func (s *Server) listInvitations(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	_, ok := s.assessments[id]
	invitations := append([]*Invitation{}, s.invitations[id]...)
	s.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
		return
	}

	c.JSON(http.StatusOK, invitations)
}

func (s *Server) createInvitation(c *gin.Context) {
	var req CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assessments[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assessment not found"})
		return
	}

	for _, inv := range s.invitations[id] {
		if inv.CandidateEmail == req.CandidateEmail {
			c.JSON(http.StatusConflict, gin.H{"error": "Candidate already invited"})
			return
		}
	}

	inv := &Invitation{
		ID:             ulid.Make().String(),
		AssessmentID:   id,
		CandidateEmail: req.CandidateEmail,
		Message:        req.Message,
		Status:         "pending",
		CreatedAt:      time.Now().UTC(),
	}
	s.invitations[id] = append(s.invitations[id], inv)

	c.JSON(http.StatusCreated, inv)
}

func (s *Server) listAssigned(c *gin.Context) {
	claims, _ := GetSession(c)

	s.mu.Lock()
	result := []*Assessment{}
	for id, invitations := range s.invitations {
		for _, inv := range invitations {
			if inv.CandidateEmail == claims.Email {
				result = append(result, s.assessments[id])
				break
			}
		}
	}
	s.mu.Unlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	c.JSON(http.StatusOK, result)
}
