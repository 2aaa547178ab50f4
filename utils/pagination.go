package utils

import (
	"errors"
	"github.com/gin-gonic/gin"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// page上限，確保Offset不會溢位
	MaxPage = 100000
)

var ErrInvalidPagination = errors.New("分頁參數錯誤")

type Pagination struct {
	Page  int
	Limit int
}

type PageMeta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// 讀取page與limit參數，limit超過上限時以上限計，page超過上限視為錯誤
func ParsePagination(c *gin.Context) (Pagination, error) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 || page > MaxPage {
		return Pagination{}, ErrInvalidPagination
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageSize)))
	if err != nil || limit < 1 {
		return Pagination{}, ErrInvalidPagination
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	return Pagination{Page: page, Limit: limit}, nil
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func (p Pagination) Meta(total int64) PageMeta {
	totalPages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageMeta{
		Page:        p.Page,
		Limit:       p.Limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     p.Page < totalPages,
		HasPrevious: p.Page > 1,
	}
}
