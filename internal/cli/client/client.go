// Package client is the typed assessment platform API. Every call goes
// through the gateway, so expired sessions are refreshed transparently.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/assessly/assessly/internal/cli/gateway"
)

var validate = validator.New()

// Client represents a typed client for the assessment platform API
type Client struct {
	gateway *gateway.Gateway
}

// New creates a new API client on top of a gateway
func New(g *gateway.Gateway) *Client {
	return &Client{gateway: g}
}

// Assessment represents an assessment owned by an employer
type Assessment struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Language         string    `json:"language"`
	TimeLimitMinutes int       `json:"time_limit_minutes"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// Invitation represents a candidate invitation to an assessment
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
	Title            string `json:"title" validate:"required,max=200"`
	Description      string `json:"description,omitempty"`
	Language         string `json:"language" validate:"required"`
	TimeLimitMinutes int    `json:"time_limit_minutes" validate:"gte=0,lte=1440"`
}

// SendInvitationRequest represents the invitation request
type SendInvitationRequest struct {
	CandidateEmail string `json:"candidate_email" validate:"required,email"`
	Message        string `json:"message,omitempty"`
}

// ListAssessments lists the assessments of the signed-in employer
func (c *Client) ListAssessments(ctx context.Context) ([]Assessment, error) {
	assessments, err := gateway.CallInto[[]Assessment](ctx, c.gateway, "/api/assessments", gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return assessments, nil
}

// GetAssessment fetches one assessment
func (c *Client) GetAssessment(ctx context.Context, id string) (*Assessment, error) {
	a, err := gateway.CallInto[*Assessment](ctx, c.gateway, assessmentPath(id), gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("failed to get assessment: empty response")
	}
	return a, nil
}

// CreateAssessment creates a new assessment
func (c *Client) CreateAssessment(ctx context.Context, req CreateAssessmentRequest) (*Assessment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid assessment: %w", err)
	}

	a, err := gateway.CallInto[*Assessment](ctx, c.gateway, "/api/assessments", gateway.Options{
		Method: http.MethodPost,
		Body:   req,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("failed to create assessment: empty response")
	}
	return a, nil
}

// DeleteAssessment deletes an assessment and its invitations
func (c *Client) DeleteAssessment(ctx context.Context, id string) error {
	if _, err := c.gateway.Call(ctx, assessmentPath(id), gateway.Options{Method: http.MethodDelete}); err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	return nil
}

// ListInvitations lists the invitations sent for an assessment
func (c *Client) ListInvitations(ctx context.Context, assessmentID string) ([]Invitation, error) {
	invitations, err := gateway.CallInto[[]Invitation](ctx, c.gateway, assessmentPath(assessmentID)+"/invitations", gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, nil
}

// SendInvitation invites a candidate to take an assessment
func (c *Client) SendInvitation(ctx context.Context, assessmentID string, req SendInvitationRequest) (*Invitation, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid invitation: %w", err)
	}

	inv, err := gateway.CallInto[*Invitation](ctx, c.gateway, assessmentPath(assessmentID)+"/invitations", gateway.Options{
		Method: http.MethodPost,
		Body:   req,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send invitation: %w", err)
	}
	if inv == nil {
		return nil, fmt.Errorf("failed to send invitation: empty response")
	}
	return inv, nil
}

// ListAssigned lists the assessments the signed-in candidate was invited to
func (c *Client) ListAssigned(ctx context.Context) ([]Assessment, error) {
	assessments, err := gateway.CallInto[[]Assessment](ctx, c.gateway, "/api/candidate/assessments", gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned assessments: %w", err)
	}
	return assessments, nil
}

func assessmentPath(id string) string {
	return "/api/assessments/" + url.PathEscape(id)
}
