package apiresp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"SocialNet/logger"
	"SocialNet/tools/errs"
)

// OK 成功时直接返回数据本身
func OK(c *gin.Context, data any) {
	if data == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Created 201
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Fail 按错误码映射 HTTP 状态并渲染 {code,msg,detail}
func Fail(c *gin.Context, err error) {
	code := errs.AsCode(err)
	status := HTTPStatus(code.Code)
	if status >= http.StatusInternalServerError {
		logger.Errorf("[api] %s %s: %+v", c.Request.Method, c.FullPath(), err)
		// 内部错误不向调用方暴露细节
		code = errs.ErrInternalServer
	} else {
		logger.Debugf("[api] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, code)
}

func HTTPStatus(code int) int {
	switch code {
	case errs.ArgsError:
		return http.StatusBadRequest
	case errs.TokenExpiredError, errs.TokenInvalidError, errs.TokenMissingError:
		return http.StatusUnauthorized
	case errs.NoPermissionError:
		return http.StatusForbidden
	case errs.RecordNotFoundError:
		return http.StatusNotFound
	case errs.DuplicateKeyError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
