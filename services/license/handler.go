package license

import (
	"net/http"
	"strconv"

	"chwone-controlplane/pkg/db/pagination"
	"chwone-controlplane/pkg/errutil"
	"chwone-controlplane/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the license routes under rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	licenses := rg.Group("/licenses")
	licenses.POST("", h.create)
	licenses.GET("", h.list)
	licenses.GET("/:id", h.get)
	licenses.PATCH("/:id", h.update)
	licenses.POST("/:id/tools", h.grantTool)
	licenses.DELETE("/:id/tools/:tool", h.revokeTool)
	licenses.PUT("/:id/seats", h.setSeats)
	licenses.POST("/:id/status", h.changeStatus)
	licenses.GET("/:id/capacity", h.capacity)
	licenses.PUT("/:id/active-users/:userId", h.addActiveUser)
	licenses.DELETE("/:id/active-users/:userId", h.removeActiveUser)
	licenses.POST("/:id/sessions", h.startSession)
	licenses.POST("/:id/sessions/:sessionId/end", h.endSession)
	licenses.POST("/:id/usage", h.logUsage)
	licenses.GET("/:id/usage", h.usageLogs)
	licenses.GET("/:id/history", h.history)

	rg.GET("/entities/:entityId/license", h.byEntity)
	rg.GET("/organizations/:orgId/users/:userId/access", h.userAccess)
	rg.GET("/pricing/estimate", h.estimate)
}

// actor reads the caller from the identity headers. Both are required.
func actor(c *gin.Context) (Actor, bool) {
	id := middleware.IdentityFrom(c.Request.Context())
	a := Actor{ID: id.UserID, Name: id.UserName}
	if err := a.validate(); err != nil {
		_ = c.Error(errutil.Unauthorized("X-User-ID and X-User-Name headers are required", nil))
		return Actor{}, false
	}
	return a, true
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return false
	}
	return true
}

func (h *Handler) create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var in CreateLicenseInput
	if !bind(c, &in) {
		return
	}

	id, err := h.svc.CreateLicense(c.Request.Context(), in, a)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) list(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	rows, info, err := h.svc.ListLicenses(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "pageInfo": info})
}

func (h *Handler) get(c *gin.Context) {
	l, err := h.svc.GetLicense(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if l == nil {
		_ = c.Error(errutil.NotFound("license not found", nil))
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) update(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var upd LicenseUpdate
	if !bind(c, &upd) {
		return
	}

	if err := h.svc.UpdateLicense(c.Request.Context(), c.Param("id"), upd, a); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type grantRequest struct {
	Tool     PlatformTool `json:"tool" binding:"required"`
	MaxUsers int          `json:"maxUsers" binding:"required,gt=0"`
}

func (h *Handler) grantTool(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req grantRequest
	if !bind(c, &req) {
		return
	}

	if err := h.svc.GrantToolAccess(c.Request.Context(), c.Param("id"), req.Tool, req.MaxUsers, a); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) revokeTool(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	if err := h.svc.RevokeToolAccess(c.Request.Context(), c.Param("id"), PlatformTool(c.Param("tool")), a); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type seatsRequest struct {
	TotalLicensedUsers *int `json:"totalLicensedUsers" binding:"required"`
}

func (h *Handler) setSeats(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req seatsRequest
	if !bind(c, &req) {
		return
	}

	if err := h.svc.SetTotalLicensedUsers(c.Request.Context(), c.Param("id"), *req.TotalLicensedUsers, a); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

type statusRequest struct {
	Action string `json:"action" binding:"required,oneof=suspend reactivate cancel"`
	Reason string `json:"reason"`
}

func (h *Handler) changeStatus(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req statusRequest
	if !bind(c, &req) {
		return
	}

	ctx, id := c.Request.Context(), c.Param("id")
	var err error
	switch req.Action {
	case "suspend":
		err = h.svc.Suspend(ctx, id, req.Reason, a)
	case "reactivate":
		err = h.svc.Reactivate(ctx, id, a)
	case "cancel":
		err = h.svc.Cancel(ctx, id, req.Reason, a)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) capacity(c *gin.Context) {
	seats, err := h.svc.CheckUserLimit(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, seats)
}

func (h *Handler) addActiveUser(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	if err := h.svc.AddActiveUser(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeActiveUser(c *gin.Context) {
	if _, ok := actor(c); !ok {
		return
	}
	if err := h.svc.RemoveActiveUser(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) startSession(c *gin.Context) {
	var in StartSessionInput
	if !bind(c, &in) {
		return
	}
	in.LicenseID = c.Param("id")
	if in.IPAddress == "" {
		in.IPAddress = c.ClientIP()
	}
	if in.UserAgent == "" {
		in.UserAgent = c.Request.UserAgent()
	}

	sess, err := h.svc.StartToolSession(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) endSession(c *gin.Context) {
	usage, err := h.svc.EndToolSession(c.Request.Context(), c.Param("id"), c.Param("sessionId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if usage == nil {
		c.JSON(http.StatusOK, gin.H{"closed": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true, "usage": usage})
}

func (h *Handler) logUsage(c *gin.Context) {
	var entry LicenseUsageLog
	if !bind(c, &entry) {
		return
	}
	entry.LicenseID = c.Param("id")

	if err := h.svc.LogUsage(c.Request.Context(), &entry); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) usageLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			_ = c.Error(errutil.BadRequest("limit must be a non-negative integer", err))
			return
		}
		limit = n
	}

	rows, err := h.svc.GetUsageLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h *Handler) history(c *gin.Context) {
	rows, err := h.svc.GetChangeHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h *Handler) byEntity(c *gin.Context) {
	l, err := h.svc.GetLicenseByEntity(c.Request.Context(), c.Param("entityId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if l == nil {
		_ = c.Error(errutil.NotFound("no active license for entity", nil))
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *Handler) userAccess(c *gin.Context) {
	access, err := h.svc.GetUserToolAccess(c.Request.Context(), c.Param("userId"), c.Param("orgId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	if tool := c.Query("tool"); tool != "" {
		t := PlatformTool(tool)
		if !t.Valid() {
			_ = c.Error(errutil.BadRequest("unknown tool", nil))
			return
		}
		decision, _ := access.Tool(t)
		c.JSON(http.StatusOK, decision)
		return
	}
	c.JSON(http.StatusOK, access)
}

func (h *Handler) estimate(c *gin.Context) {
	users, err := strconv.Atoi(c.Query("users"))
	if err != nil || users <= 0 {
		_ = c.Error(errutil.BadRequest("users must be a positive integer", err))
		return
	}
	cycle := BillingCycle(c.DefaultQuery("cycle", string(Monthly)))
	if !cycle.Valid() {
		_ = c.Error(errutil.BadRequest("unknown billing cycle", nil))
		return
	}
	c.JSON(http.StatusOK, EstimateCost(users, cycle))
}
