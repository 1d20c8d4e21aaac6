package http

import (
	"errors"
	"io"
	"net/http"

	apperrors "userhub/pkg/errors"
	"userhub/pkg/userpb"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler is the REST façade over the gRPC user service. Handlers
// attach failures to the gin context; ErrorHandlerMiddleware renders them.
type UserHandler struct {
	client userpb.UserServiceClient
	logger *zap.SugaredLogger
}

func NewUserHandler(client userpb.UserServiceClient, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{
		client: client,
		logger: logger,
	}
}

func (h *UserHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.POST("/users", h.CreateUser)
		api.POST("/users/batch", h.CreateUsers)
		api.GET("/users", h.ListUsers)
		api.GET("/users/:id", h.GetUser)
		api.PUT("/users/:id", h.UpdateUser)
		api.DELETE("/users/:id", h.DeleteUser)
	}
}

type UserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request body"))
		return
	}

	user, err := h.client.CreateUser(c.Request.Context(), &userpb.CreateUserRequest{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.client.GetUser(c.Request.Context(), &userpb.GetUserRequest{Id: c.Param("id")})
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("invalid request body"))
		return
	}

	user, err := h.client.UpdateUser(c.Request.Context(), &userpb.UpdateUserRequest{
		Id:    c.Param("id"),
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	resp, err := h.client.DeleteUser(c.Request.Context(), &userpb.DeleteUserRequest{Id: c.Param("id")})
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListUsers drains the server stream into a single JSON array.
func (h *UserHandler) ListUsers(c *gin.Context) {
	stream, err := h.client.ListUsers(c.Request.Context(), &userpb.ListUsersRequest{})
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	users := []*userpb.User{}
	for {
		user, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = c.Error(apperrors.FromGRPCStatus(err))
			return
		}
		users = append(users, user)
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// CreateUsers streams a JSON array of users over the client-streaming RPC.
func (h *UserHandler) CreateUsers(c *gin.Context) {
	var reqs []UserRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("request body must be a JSON array of users"))
		return
	}

	stream, err := h.client.CreateUsers(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	for _, req := range reqs {
		// io.EOF means the server already finished; its status comes from
		// CloseAndRecv below
		if err := stream.Send(&userpb.CreateUserRequest{Name: req.Name, Email: req.Email}); err != nil {
			if !errors.Is(err, io.EOF) {
				h.logger.Warnw("batch send failed", "error", err)
			}
			break
		}
	}

	result, err := stream.CloseAndRecv()
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	c.JSON(http.StatusOK, result)
}
