// Package utils 提供雪花 ID、重试、分页等通用工具
package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
)

var defaultNode *snowflake.Node

func init() {
	nodeID := int64(1)
	if v := os.Getenv("NODE_ID"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		panic("utils: init snowflake node: " + err.Error())
	}
	defaultNode = node
}

// GenID 使用默认节点生成雪花 ID
func GenID() int64 {
	return defaultNode.Generate().Int64()
}

// GenIDString 使用默认节点生成字符串形式的雪花 ID
func GenIDString() string {
	return defaultNode.Generate().String()
}

// Retry 重试函数
func Retry(maxAttempts int, delay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxAttempts-1 {
			time.Sleep(delay)
		}
	}
	return lastErr
}

// Pagination 分页信息
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Pages    int64 `json:"pages"`
}

// NewPagination 创建分页信息
func NewPagination(page, pageSize int, total int64) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 1000 {
		pageSize = 1000
	}

	pages := (total + int64(pageSize) - 1) / int64(pageSize)

	return &Pagination{
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    pages,
	}
}

// Offset 获取数据库查询偏移量
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit 获取数据库查询限制
func (p *Pagination) Limit() int {
	return p.PageSize
}
