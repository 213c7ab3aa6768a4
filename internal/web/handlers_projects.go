package web

import (
	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/invitation"
	"github.com/thenoetrevino/tablero/internal/services/project"
)

type projectBody struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type memberBody struct {
	Role models.Role `json:"role"`
}

type invitationBody struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// ============================================================================
// Projects
// ============================================================================

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.app.Projects.ListProjects(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, projects)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var body projectBody
	if !bindJSON(c, &body) {
		return
	}
	req := project.CreateProjectRequest{ActorID: actor(c)}
	if body.Name != nil {
		req.Name = *body.Name
	}
	if body.Description != nil {
		req.Description = *body.Description
	}
	p, err := s.app.Projects.CreateProject(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, p)
}

func (s *Server) handleGetProject(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	p, err := s.app.Projects.GetProject(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body projectBody
	if !bindJSON(c, &body) {
		return
	}
	p, err := s.app.Projects.UpdateProject(c.Request.Context(), project.UpdateProjectRequest{
		ActorID:     actor(c),
		ID:          id,
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Projects.DeleteProject(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// ============================================================================
// Members
// ============================================================================

func (s *Server) handleListMembers(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	members, err := s.app.Projects.ListMembers(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, members)
}

func (s *Server) handleUpdateMember(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	userID, valid := pathID(c, "userId")
	if !valid {
		return
	}
	var body memberBody
	if !bindJSON(c, &body) {
		return
	}
	err := s.app.Projects.UpdateMemberRole(c.Request.Context(), project.UpdateMemberRoleRequest{
		ActorID:   actor(c),
		ProjectID: projectID,
		UserID:    userID,
		Role:      body.Role,
	})
	if err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	userID, valid := pathID(c, "userId")
	if !valid {
		return
	}
	if err := s.app.Projects.RemoveMember(c.Request.Context(), actor(c), projectID, userID); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// ============================================================================
// Invitations
// ============================================================================

func (s *Server) handleListInvitations(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	invitations, err := s.app.Invitations.ListInvitations(c.Request.Context(), actor(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, invitations)
}

func (s *Server) handleCreateInvitation(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body invitationBody
	if !bindJSON(c, &body) {
		return
	}
	inv, err := s.app.Invitations.CreateInvitation(c.Request.Context(), invitation.CreateInvitationRequest{
		ActorID:   actor(c),
		ProjectID: projectID,
		Email:     body.Email,
		Role:      body.Role,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, inv)
}

func (s *Server) handleRevokeInvitation(c *gin.Context) {
	id, valid := pathID(c, "invitationId")
	if !valid {
		return
	}
	if err := s.app.Invitations.RevokeInvitation(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (s *Server) handleLookupInvitation(c *gin.Context) {
	preview, err := s.app.Invitations.LookupInvitation(c.Request.Context(), c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, preview)
}

func (s *Server) handleAcceptInvitation(c *gin.Context) {
	p, err := s.app.Invitations.AcceptInvitation(c.Request.Context(), actor(c), c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}
