package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sichatlabs/sichat-deploy/internal/deploylock"
	"github.com/sichatlabs/sichat-deploy/internal/domain/volume"
	"github.com/sichatlabs/sichat-deploy/internal/usecase/deployment"
	"github.com/sichatlabs/sichat-deploy/internal/version"
)

type redeployRequest struct {
	Service    string `json:"service" binding:"required"`
	ImageRef   string `json:"image_ref"`
	VolumeName string `json:"volume_name"`
	Region     string `json:"region"`
	Endpoint   string `json:"endpoint"`
}

// Redeploy runs one redeploy cycle synchronously and returns the attempt.
func (r *Router) Redeploy(c *gin.Context) {
	var req redeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vol := volume.Binding{Name: req.VolumeName, Region: req.Region}
	if vol.Name == "" {
		vol.Name = r.cfg.DefaultVolumeName
	}
	if vol.Region == "" {
		vol.Region = r.cfg.DefaultRegion
	}

	attempt, err := r.redeployUC.Execute(c.Request.Context(), deployment.Request{
		ServiceName: req.Service,
		ImageRef:    req.ImageRef,
		Volume:      vol,
		Endpoint:    req.Endpoint,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, deploylock.ErrLockHeld) {
			status = http.StatusConflict
		}
		var ambiguity *deployment.RegistryAmbiguityError
		if errors.As(err, &ambiguity) {
			status = http.StatusConflict
		}
		r.logger.Error("admin_redeploy_failed", zap.Error(err), zap.String("service", req.Service))
		c.JSON(status, gin.H{"error": err.Error(), "attempt": attempt})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempt": attempt})
}

// ListAttempts returns recent deployment attempts, newest first.
func (r *Router) ListAttempts(c *gin.Context) {
	if r.attempts == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "attempt history not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	attempts, err := r.attempts.ListRecent(c.Request.Context(), c.Query("service"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// ListInstances returns the registry's live view for one service.
func (r *Router) ListInstances(c *gin.Context) {
	instances, err := r.registry.List(c.Request.Context(), c.Param("service"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"instances": instances})
}

// ListVersions returns all non-EOL homeserver versions.
func (r *Router) ListVersions(c *gin.Context) {
	if r.versionReg == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "version registry not configured"})
		return
	}

	versions, err := r.versionReg.ListAvailable(c.Request.Context(), version.AppConduit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

type createVersionRequest struct {
	Version     string `json:"version" binding:"required"`
	DockerImage string `json:"docker_image" binding:"required"`
	Status      string `json:"status"`
	IsDefault   bool   `json:"is_default"`
}

// CreateVersion registers a new deployable version.
func (r *Router) CreateVersion(c *gin.Context) {
	if r.versionReg == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "version registry not configured"})
		return
	}

	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := req.Status
	if status == "" {
		status = version.StatusStable
	}

	v := &version.HomeserverVersion{
		ApplicationName: version.AppConduit,
		Version:         req.Version,
		Status:          status,
		ReleaseDate:     time.Now().UTC(),
		DockerImage:     req.DockerImage,
	}
	if err := r.versionReg.CreateVersion(c.Request.Context(), v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.IsDefault {
		if err := r.versionReg.SetDefaultVersion(c.Request.Context(), version.AppConduit, req.Version); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"version": v})
}

type setDefaultRequest struct {
	Version string `json:"version" binding:"required"`
}

// SetDefaultVersion repoints the default version used by redeploys with no
// explicit image ref.
func (r *Router) SetDefaultVersion(c *gin.Context) {
	if r.versionReg == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "version registry not configured"})
		return
	}

	var req setDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := r.versionReg.ValidateVersion(c.Request.Context(), version.AppConduit, req.Version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "version not found or EOL"})
		return
	}

	if err := r.versionReg.SetDefaultVersion(c.Request.Context(), version.AppConduit, req.Version); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"default": req.Version})
}
