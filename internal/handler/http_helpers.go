package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseUintQuery(c *gin.Context, key string) uint {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

func parsePositiveInt(value string, fallback int) int {
	num, err := strconv.Atoi(value)
	if err != nil || num <= 0 {
		return fallback
	}
	return num
}

var (
	notFoundErrors = []error{
		service.ErrPageNotFound, service.ErrBlockNotFound, service.ErrAttachmentNotFound,
		service.ErrGroupNotFound, service.ErrCategoryNotFound, service.ErrArticleNotFound,
		service.ErrTagNotFound, service.ErrSeoNotFound, service.ErrSiteNotFound,
		service.ErrObjectNotFound, service.ErrAuthorNotFound,
	}
	conflictErrors = []error{
		service.ErrPageSlugConflict, service.ErrPageSiteChange, service.ErrCategorySlugConflict, service.ErrArticleSlugConflict,
		service.ErrGroupExists, service.ErrTagExists, service.ErrTagInUse,
	}
)

// statusFor maps service errors to HTTP status codes. Errors not listed as
// missing or conflicting are validation errors unless unknown.
func statusFor(err error) int {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	for _, target := range []error{
		service.ErrPageTitleRequired, service.ErrPageSlugRequired, service.ErrPageSelfParent,
		service.ErrPageCycle, service.ErrPageParentNotFound, service.ErrInvalidTarget,
		service.ErrInvalidFormat, service.ErrInvalidPosition, service.ErrBlockKeyRequired,
		service.ErrInvalidBlockContent, service.ErrUnknownObjectKind, service.ErrGroupTitleRequired,
		service.ErrCategoryTitleRequired, service.ErrCategoryCycle, service.ErrArticleTitleRequired,
		service.ErrSeoKindUnsupported, service.ErrTagOrder,
	} {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// respondServiceError writes err with its mapped status. Unknown errors are
// recorded on the context and answered with fallback.
func respondServiceError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Error(err)
		respondError(c, status, fallback)
		return
	}
	respondError(c, status, err.Error())
}
