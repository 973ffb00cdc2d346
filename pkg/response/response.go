// Package response 统一的 HTTP 响应结构
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一响应体
type Body struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success 200 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Code: 0, Message: "success", Data: data})
}

// Created 201 创建成功响应
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Code: 0, Message: "success", Data: data})
}

// Error 业务错误, HTTP 状态码 500
func Error(c *gin.Context, message string) {
	ErrorWithStatus(c, http.StatusInternalServerError, message, "")
}

// ErrorWithStatus 指定状态码的错误响应
func ErrorWithStatus(c *gin.Context, status int, message, detail string) {
	c.JSON(status, Body{Code: status, Message: message, Detail: detail})
}
