package web

import (
	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/services/user"
)

type registerBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileBody struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var body registerBody
	if !bindJSON(c, &body) {
		return
	}
	u, err := s.app.Users.Register(c.Request.Context(), user.RegisterRequest{
		Email:    body.Email,
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, u)
}

func (s *Server) handleLogin(c *gin.Context) {
	var body loginBody
	if !bindJSON(c, &body) {
		return
	}
	result, err := s.app.Users.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.app.Users.GetUser(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	var body profileBody
	if !bindJSON(c, &body) {
		return
	}
	u, err := s.app.Users.UpdateProfile(c.Request.Context(), user.UpdateProfileRequest{
		UserID:   actor(c),
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.app.Users.ListUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, users)
}
