// Service registration handlers.
//
//   - POST /service/  (register a client application, returns its token)
//   - GET  /service/  (look a service up by name)
//
// Both endpoints return the signing token and are meant for operators, not
// for end users.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comments-backend/internal/domain"
)

// RegisterServiceRequest is the JSON payload for registering a service.
type RegisterServiceRequest struct {
	ServiceName string `json:"serviceName" example:"blog"`
}

// ServiceResponse describes a registered service.
type ServiceResponse struct {
	ID          string `json:"id" example:"3f1c2a9e-6b1d-4c59-9a51-7d3b5e2f0c11"`
	ServiceName string `json:"serviceName" example:"blog"`
	Token       string `json:"token" example:"9b74c9897bac770ffc029102a200c5de"`
}

func toServiceResponse(s *domain.Service) ServiceResponse {
	return ServiceResponse{ID: s.ID, ServiceName: s.ServiceName, Token: s.Token}
}

// RegisterService godoc
// @ID          registerService
// @Summary     Register a service
// @Description Registers a client application and returns its id and signing token.
// @Description The name may be sent as JSON or as the serviceName query parameter.
// @Tags        Services
// @Accept      json
// @Produce     json
//
// @Param       serviceName  query  string  false "Service name (when not sent in the body)"
// @Param       body         body   handlers.RegisterServiceRequest  false  "Service payload"
//
// @Success     201  {object}  handlers.ServiceResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or name taken"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /service/ [post]
func (h *Handlers) RegisterService(c *gin.Context) {
	var req RegisterServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	name := req.ServiceName
	if strings.TrimSpace(name) == "" {
		name = c.Query("serviceName")
	}

	s, err := h.registry.Create(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, toServiceResponse(s))
}

// GetService godoc
// @ID          getService
// @Summary     Look up a service
// @Description Returns the service registered under serviceName, including its token.
// @Tags        Services
// @Produce     json
//
// @Param       serviceName  query  string  true  "Service name"  example(blog)
//
// @Success     200  {object}  handlers.ServiceResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Service not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /service/ [get]
func (h *Handlers) GetService(c *gin.Context) {
	s, err := h.registry.GetByName(c.Request.Context(), c.Query("serviceName"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, toServiceResponse(s))
}
